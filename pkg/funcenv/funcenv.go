// Package funcenv is the environment contract between the stack and the function it deploys.
//
// The stack writes Defaults into the function's environment map; the function (or the
// local gateway emulator standing in for it) reads them back with Parse.
package funcenv

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/theory-cloud/apistack/pkg/logger"
	"github.com/theory-cloud/apistack/pkg/observability"
)

const (
	KeyEnv            = "ENV"
	KeyReadTimeout    = "READ_TIMEOUT"
	KeyWriteTimeout   = "WRITE_TIMEOUT"
	KeyMaxHeaderBytes = "MAX_HEADER_BYTES"
	KeyTableName      = "DB_TABLE_NAME"
)

const (
	DefaultReadTimeout    = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultMaxHeaderBytes = 1 << 20
	DefaultTableName      = "secrets"
)

// Settings are the operational values handed to the function.
type Settings struct {
	Env            string        `yaml:"env"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	TableName      string        `yaml:"table_name"`
}

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func Defaults(env string) Settings {
	return Settings{
		Env:            env,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		MaxHeaderBytes: DefaultMaxHeaderBytes,
		TableName:      DefaultTableName,
	}
}

// Map renders s as the function environment map.
func (s Settings) Map() map[string]string {
	return map[string]string{
		KeyEnv:            s.Env,
		KeyReadTimeout:    s.ReadTimeout.String(),
		KeyWriteTimeout:   s.WriteTimeout.String(),
		KeyMaxHeaderBytes: strconv.Itoa(s.MaxHeaderBytes),
		KeyTableName:      s.TableName,
	}
}

// Parse reads Settings through lookup. Missing values take their defaults; values that do
// not parse (or are not positive) are logged as warnings and also take their defaults.
// A nil log falls back to the global logger.
func Parse(lookup LookupFunc, log observability.StructuredLogger) Settings {
	if log == nil {
		log = logger.Logger()
	}
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}

	out := Defaults("")
	if v, ok := lookup(KeyEnv); ok {
		out.Env = strings.TrimSpace(v)
	}
	if v, ok := lookup(KeyTableName); ok && strings.TrimSpace(v) != "" {
		out.TableName = strings.TrimSpace(v)
	}

	out.ReadTimeout = parseDuration(lookup, KeyReadTimeout, DefaultReadTimeout, log)
	out.WriteTimeout = parseDuration(lookup, KeyWriteTimeout, DefaultWriteTimeout, log)

	if raw, ok := lookup(KeyMaxHeaderBytes); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			log.Warn("invalid function setting, using default", map[string]any{
				"key":     KeyMaxHeaderBytes,
				"value":   raw,
				"default": DefaultMaxHeaderBytes,
			})
		} else {
			out.MaxHeaderBytes = n
		}
	}
	return out
}

// FromMap parses an environment map such as the one Defaults renders.
func FromMap(env map[string]string, log observability.StructuredLogger) Settings {
	return Parse(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}, log)
}

// FromEnviron parses the process environment.
func FromEnviron(log observability.StructuredLogger) Settings {
	return Parse(os.LookupEnv, log)
}

func parseDuration(lookup LookupFunc, key string, def time.Duration, log observability.StructuredLogger) time.Duration {
	raw, ok := lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		log.Warn("invalid function setting, using default", map[string]any{
			"key":     key,
			"value":   raw,
			"default": def.String(),
		})
		return def
	}
	return d
}
