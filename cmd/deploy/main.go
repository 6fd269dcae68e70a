// Command deploy is the CDK app: it reads configuration once, composes the API stack
// and synthesizes it into the cloud assembly directory. cdk.json runs it.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/theory-cloud/apistack/pkg/cdkstack"
	"github.com/theory-cloud/apistack/pkg/composer"
	"github.com/theory-cloud/apistack/pkg/config"
	"github.com/theory-cloud/apistack/pkg/logger"
	"github.com/theory-cloud/apistack/pkg/observability"
	obszap "github.com/theory-cloud/apistack/pkg/observability/zap"
)

func main() {
	code := run(context.Background())
	jsii.Close()
	os.Exit(code)
}

func run(ctx context.Context) int {
	cfg, err := config.Load(ctx)
	log := newLogger(cfg.Logging)
	defer func() { _ = log.Flush(ctx) }()

	if err != nil {
		log.Error("load configuration", map[string]any{"error": err.Error()})
		return 1
	}

	app := awscdk.NewApp(nil)
	stack, err := build(app, cfg)
	if err != nil {
		log.Error("build stack", map[string]any{"error": err.Error()})
		return 1
	}
	log.Info("synthesizing", map[string]any{
		"stack":   *stack.StackName(),
		"account": cfg.Account,
		"region":  cfg.Region,
		"asset":   cfg.AssetDir,
	})

	app.Synth(nil)
	return 0
}

// build checks the function asset, composes the graph and realizes it in scope.
func build(scope constructs.Construct, cfg config.Config) (*cdkstack.Stack, error) {
	if err := cfg.CheckAsset(); err != nil {
		return nil, err
	}
	g, err := composer.Compose(cfg.Settings())
	if err != nil {
		return nil, err
	}
	return cdkstack.New(scope, g)
}

func newLogger(cfg observability.LoggerConfig) observability.StructuredLogger {
	log, err := obszap.NewZapLogger(cfg)
	if err != nil {
		log, _ = obszap.NewZapLogger(observability.LoggerConfig{})
	}
	logger.SetLogger(log)
	return logger.Logger()
}
