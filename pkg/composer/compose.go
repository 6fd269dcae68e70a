package composer

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/theory-cloud/apistack/pkg/funcenv"
	"github.com/theory-cloud/apistack/pkg/layers"
	"github.com/theory-cloud/apistack/pkg/naming"
	"github.com/theory-cloud/apistack/pkg/policy"
)

const (
	FunctionMemoryMB = 512
	FunctionTimeout  = 30 * time.Second
	PreflightMaxAge  = 24 * time.Hour
	OutputID         = "ApiGatewayUrl"
)

var (
	regionPattern  = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]?)?-[a-z]+-[0-9]+$`)
	accountPattern = regexp.MustCompile(`^[0-9]{12}$`)
)

// Settings is everything Compose reads. It is built once at program start (see
// pkg/config) and passed in explicitly.
type Settings struct {
	Environment string
	Account     string
	Region      string
	AssetDir    string
}

// Validate reports configuration errors in s.
func (s Settings) Validate() error {
	if !naming.Canonical(s.Environment) {
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, s.Environment)
	}
	if !regionPattern.MatchString(s.Region) {
		return fmt.Errorf("%w: %q", ErrInvalidRegion, s.Region)
	}
	if !accountPattern.MatchString(s.Account) {
		return fmt.Errorf("%w: %q", ErrInvalidAccount, s.Account)
	}
	if strings.TrimSpace(s.AssetDir) == "" {
		return ErrMissingAsset
	}
	return nil
}

// Compose builds the resource graph for s in dependency order: log sink, function,
// observability layer, access policy, gateway with its catch-all proxy route, output.
// Any failure aborts the whole assembly; no partial graph is returned.
func Compose(s Settings) (Graph, error) {
	if err := s.Validate(); err != nil {
		return Graph{}, err
	}
	env := s.Environment

	logSink := LogSink{
		ID:        naming.LogSinkID(env),
		Name:      naming.LogSinkName(env),
		Retention: RetentionInfinite,
	}

	fn := Function{
		ID:                naming.FunctionID(env),
		Name:              naming.FunctionName(env),
		Runtime:           RuntimeProvidedAL2,
		Handler:           HandlerBootstrap,
		AssetDir:          s.AssetDir,
		MemoryMB:          FunctionMemoryMB,
		Timeout:           FunctionTimeout,
		Environment:       funcenv.Defaults(env).Map(),
		Tracing:           TracingActive,
		RuntimeManagement: RuntimeManagementAuto,
	}

	ref := layers.Collector(s.Region)
	layer := Layer{
		ID:        naming.LayerID(env),
		Reference: ref,
		ARN:       ref.ARN(),
		Function:  fn.ID,
	}

	access := Policy{
		ID:       naming.PolicyName(env),
		Document: policy.API(naming.PolicyName(env)),
		Function: fn.ID,
	}

	integration := Integration{Function: fn.ID, Proxy: true}
	gateway := Gateway{
		ID:             naming.GatewayName(env),
		Name:           naming.GatewayName(env),
		Description:    env + " API Gateway",
		StageName:      env,
		LoggingLevel:   LoggingLevelInfo,
		TracingEnabled: true,
		CloudWatchRole: true,
		AccessLogSink:  logSink.ID,
		CORS: CORS{
			AllowMethods: slices.Clone(AllMethods),
			AllowHeaders: slices.Clone(AllowedHeaders),
			AllowOrigins: []string{"*"},
			MaxAge:       PreflightMaxAge,
		},
		Default: integration,
		Root: Route{
			Path:        RootPath,
			Method:      AnyMethod,
			Integration: integration,
		},
		Proxy: Route{
			Path:        ProxyPath,
			Method:      AnyMethod,
			Integration: integration,
		},
	}

	out := Output{
		ID:          OutputID,
		ExportName:  naming.GatewayExport(env),
		Description: "The base URL of the API Gateway",
		Gateway:     gateway.ID,
	}

	g := Graph{
		StackID:     naming.StackID(env),
		Environment: env,
		Account:     s.Account,
		Region:      s.Region,
		LogSink:     logSink,
		Function:    fn,
		Layer:       layer,
		Policy:      access,
		Gateway:     gateway,
		Output:      out,
	}
	if err := g.Validate(); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// Validate checks the graph's structural invariants: unique names, a single function
// target for every integration, references that resolve, and an additive-only policy.
func (g Graph) Validate() error {
	seen := make(map[string]struct{})
	for _, name := range g.Names() {
		if name == "" {
			return fmt.Errorf("%w: empty resource name", ErrInvalidGraph)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
	}

	targets := []string{
		g.Layer.Function,
		g.Policy.Function,
		g.Gateway.Default.Function,
		g.Gateway.Root.Integration.Function,
		g.Gateway.Proxy.Integration.Function,
	}
	for _, target := range targets {
		if target != g.Function.ID {
			return fmt.Errorf("%w: reference %q does not name function %q", ErrInvalidGraph, target, g.Function.ID)
		}
	}
	if !g.Gateway.Default.Proxy || !g.Gateway.Root.Integration.Proxy || !g.Gateway.Proxy.Integration.Proxy {
		return fmt.Errorf("%w: gateway integrations must be proxy integrations", ErrInvalidGraph)
	}
	if g.Gateway.AccessLogSink != g.LogSink.ID {
		return fmt.Errorf("%w: access log sink %q is not %q", ErrInvalidGraph, g.Gateway.AccessLogSink, g.LogSink.ID)
	}
	if g.Output.Gateway != g.Gateway.ID {
		return fmt.Errorf("%w: output source %q is not %q", ErrInvalidGraph, g.Output.Gateway, g.Gateway.ID)
	}
	if err := g.Policy.Document.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	return nil
}
