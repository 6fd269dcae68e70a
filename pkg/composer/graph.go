package composer

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/theory-cloud/apistack/pkg/layers"
	"github.com/theory-cloud/apistack/pkg/policy"
)

const (
	RuntimeProvidedAL2 = "provided.al2"
	HandlerBootstrap   = "bootstrap"

	TracingActive         = "Active"
	RuntimeManagementAuto = "Auto"

	RetentionInfinite = "Infinite"
	LoggingLevelInfo  = "INFO"

	RootPath  = "/"
	ProxyPath = "{proxy+}"
	AnyMethod = "ANY"
)

// AllMethods mirrors the gateway's "all methods" CORS shorthand.
var AllMethods = []string{"OPTIONS", "GET", "PUT", "POST", "DELETE", "PATCH", "HEAD"}

// AllowedHeaders are the request headers accepted by CORS preflight.
var AllowedHeaders = []string{
	"Content-Type",
	"Authorization",
	"X-Amz-Date",
	"X-Api-Key",
	"X-Amz-Security-Token",
	"X-Amz-User-Agent",
	"X-Public-Id",
	"Accept",
}

// Graph is the fully linked resource graph of one API stack.
type Graph struct {
	StackID     string `yaml:"stack_id"`
	Environment string `yaml:"environment"`
	Account     string `yaml:"account"`
	Region      string `yaml:"region"`

	LogSink  LogSink  `yaml:"log_sink"`
	Function Function `yaml:"function"`
	Layer    Layer    `yaml:"layer"`
	Policy   Policy   `yaml:"policy"`
	Gateway  Gateway  `yaml:"gateway"`
	Output   Output   `yaml:"output"`
}

type LogSink struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Retention string `yaml:"retention"`
}

type Function struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	Runtime           string            `yaml:"runtime"`
	Handler           string            `yaml:"handler"`
	AssetDir          string            `yaml:"asset_dir"`
	MemoryMB          int               `yaml:"memory_mb"`
	Timeout           time.Duration     `yaml:"timeout"`
	Environment       map[string]string `yaml:"environment"`
	Tracing           string            `yaml:"tracing"`
	RuntimeManagement string            `yaml:"runtime_management"`
}

// Layer is an externally published layer attached to, not owned by, the function.
type Layer struct {
	ID        string           `yaml:"id"`
	Reference layers.Reference `yaml:"reference"`
	ARN       string           `yaml:"arn"`
	Function  string           `yaml:"function"`
}

// Policy is attached inline to the execution role of Function.
type Policy struct {
	ID       string          `yaml:"id"`
	Document policy.Document `yaml:"document"`
	Function string          `yaml:"function"`
}

type CORS struct {
	AllowMethods []string      `yaml:"allow_methods"`
	AllowHeaders []string      `yaml:"allow_headers"`
	AllowOrigins []string      `yaml:"allow_origins"`
	MaxAge       time.Duration `yaml:"max_age"`
}

// Integration forwards requests to a function. Proxy integrations pass the request
// through unmodified and return the function's response unmodified.
type Integration struct {
	Function string `yaml:"function"`
	Proxy    bool   `yaml:"proxy"`
}

type Route struct {
	Path        string      `yaml:"path"`
	Method      string      `yaml:"method"`
	Integration Integration `yaml:"integration"`
}

type Gateway struct {
	ID             string      `yaml:"id"`
	Name           string      `yaml:"name"`
	Description    string      `yaml:"description"`
	StageName      string      `yaml:"stage_name"`
	LoggingLevel   string      `yaml:"logging_level"`
	TracingEnabled bool        `yaml:"tracing_enabled"`
	CloudWatchRole bool        `yaml:"cloudwatch_role"`
	AccessLogSink  string      `yaml:"access_log_sink"`
	CORS           CORS        `yaml:"cors"`
	Default        Integration `yaml:"default_integration"`
	Root           Route       `yaml:"root_route"`
	Proxy          Route       `yaml:"proxy_route"`
}

// Output publishes the gateway base URL.
type Output struct {
	ID          string `yaml:"id"`
	ExportName  string `yaml:"export_name"`
	Description string `yaml:"description"`
	Gateway     string `yaml:"gateway"`
}

// Names returns every provider-visible name and construct ID in the graph, in a
// stable order.
func (g Graph) Names() []string {
	return []string{
		g.LogSink.ID,
		g.Function.ID,
		g.Function.Name,
		g.Layer.ID,
		g.Policy.ID,
		g.Gateway.ID,
		g.Output.ExportName,
	}
}

// BaseURL returns the invoke URL the gateway will publish for restAPIID.
func (g Graph) BaseURL(restAPIID string) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s/", restAPIID, g.Region, g.Gateway.StageName)
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := g
	out.Function.Environment = maps.Clone(g.Function.Environment)
	out.Policy.Document = g.Policy.Document.Clone()
	out.Gateway.CORS.AllowMethods = slices.Clone(g.Gateway.CORS.AllowMethods)
	out.Gateway.CORS.AllowHeaders = slices.Clone(g.Gateway.CORS.AllowHeaders)
	out.Gateway.CORS.AllowOrigins = slices.Clone(g.Gateway.CORS.AllowOrigins)
	return out
}
