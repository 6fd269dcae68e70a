package naming

import (
	"regexp"
	"strings"
)

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9-]+`)
	multiDash   = regexp.MustCompile(`-+`)
	environment = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)
)

const (
	apiBase        = "api"
	logGroupPrefix = "/aws/apigateway/"
)

func sanitizePart(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, "_", "-")
	value = strings.ReplaceAll(value, " ", "-")
	value = nonAlnum.ReplaceAllString(value, "-")
	value = multiDash.ReplaceAllString(value, "-")
	value = strings.Trim(value, "-")
	return value
}

// Canonical reports whether env is usable verbatim as a naming prefix.
//
// Identifiers are never rewritten: an environment that would need sanitizing is rejected
// so that every derived name carries the identifier exactly as given.
func Canonical(env string) bool {
	if env == "" || strings.Contains(env, "--") {
		return false
	}
	return environment.MatchString(env) && sanitizePart(env) == env
}

// Prefix returns the naming prefix shared by every resource of the API stack:
// <env>-api.
func Prefix(env string) string {
	return env + "-" + apiBase
}

// ResourceName returns <env>-api-<resource>, or the bare prefix when resource is empty.
func ResourceName(env, resource string) string {
	resource = sanitizePart(resource)
	if resource == "" {
		return Prefix(env)
	}
	return Prefix(env) + "-" + resource
}

func StackID(env string) string       { return ResourceName(env, "stack") }
func FunctionName(env string) string  { return Prefix(env) }
func FunctionID(env string) string    { return ResourceName(env, "function") }
func LogSinkID(env string) string     { return ResourceName(env, "logs") }
func LayerID(env string) string       { return ResourceName(env, "otel-layer") }
func PolicyName(env string) string    { return ResourceName(env, "policy") }
func GatewayName(env string) string   { return ResourceName(env, "gateway") }
func GatewayExport(env string) string { return ResourceName(env, "gateway-url") }

// LogSinkName returns the CloudWatch log group path for gateway access logs:
// /aws/apigateway/<env>-api-logs.
func LogSinkName(env string) string {
	return logGroupPrefix + LogSinkID(env)
}
