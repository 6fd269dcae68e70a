// Package config loads the deploy-time configuration once, at program start.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML file named by
// APISTACK_CONFIG, environment variables, and finally the AWS SDK: the shared config
// for the region and the caller identity for the account. Nothing here is consulted
// again once composition starts.
//
// A relative asset directory resolves against the config file's directory when it comes
// from the file, and against the working directory when it comes from APISTACK_ASSET_DIR.
// With neither, the asset directory is bin/ under the module root.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/apistack/pkg/composer"
	"github.com/theory-cloud/apistack/pkg/observability"
)

const (
	EnvAccount   = "CDK_DEFAULT_ACCOUNT"
	EnvRegion    = "CDK_DEFAULT_REGION"
	EnvStage     = "APISTACK_ENV"
	EnvAssetDir  = "APISTACK_ASSET_DIR"
	EnvFile      = "APISTACK_CONFIG"
	EnvLogLevel  = "APISTACK_LOG_LEVEL"
	EnvLogFormat = "APISTACK_LOG_FORMAT"

	DefaultEnvironment = "prod"

	// BootstrapName is the executable the provided.al2 runtime starts.
	BootstrapName = "bootstrap"
)

var (
	ErrMissingValue = errors.New("config: missing required value")
	ErrAssetMissing = errors.New("config: function asset not found")
)

var (
	// Get current file full path from runtime
	_, b, _, _ = runtime.Caller(0)

	// ProjectRoot is the module root; the prebuilt function lives in ProjectRoot/bin.
	ProjectRoot = filepath.Join(filepath.Dir(b), "..", "..")
)

type Config struct {
	Environment string                     `yaml:"environment"`
	Account     string                     `yaml:"account"`
	Region      string                     `yaml:"region"`
	AssetDir    string                     `yaml:"asset_dir"`
	Logging     observability.LoggerConfig `yaml:"logging"`
}

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// RegionResolver supplies a region when none is configured explicitly.
type RegionResolver func(ctx context.Context) (string, error)

// AccountResolver supplies an account when none is configured explicitly.
type AccountResolver func(ctx context.Context, region string) (string, error)

type Option func(*loader)

type loader struct {
	lookup  LookupFunc
	region  RegionResolver
	account AccountResolver
}

// WithLookup replaces the process environment as the variable source.
func WithLookup(fn LookupFunc) Option {
	return func(l *loader) {
		if fn != nil {
			l.lookup = fn
		}
	}
}

// WithRegionResolver replaces the AWS shared-config region fallback.
// Passing nil disables the fallback.
func WithRegionResolver(fn RegionResolver) Option {
	return func(l *loader) {
		l.region = fn
	}
}

// WithAccountResolver replaces the caller-identity account fallback.
// Passing nil disables the fallback.
func WithAccountResolver(fn AccountResolver) Option {
	return func(l *loader) {
		l.account = fn
	}
}

// SharedConfigRegion resolves the region the AWS SDK would use (AWS_REGION,
// AWS_DEFAULT_REGION, the selected profile in ~/.aws/config).
func SharedConfigRegion(ctx context.Context) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	return cfg.Region, nil
}

// CallerAccount asks STS which account the active credentials belong to.
func CallerAccount(ctx context.Context, region string) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return "", err
	}
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Account), nil
}

// Load assembles the configuration. Account and region are required; the AWS SDK
// fallbacks run only for values left empty by the file and the environment.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	l := &loader{lookup: os.LookupEnv, region: SharedConfigRegion, account: CallerAccount}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := Config{Environment: DefaultEnvironment}
	baseDir := ProjectRoot

	if path := l.get(EnvFile); path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
		baseDir = filepath.Dir(path)
	}

	overlay(&cfg.Environment, l.get(EnvStage))
	overlay(&cfg.Account, l.get(EnvAccount))
	overlay(&cfg.Region, l.get(EnvRegion))
	overlay(&cfg.Logging.Level, l.get(EnvLogLevel))
	overlay(&cfg.Logging.Format, l.get(EnvLogFormat))
	if dir := l.get(EnvAssetDir); dir != "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("config: working directory: %w", err)
		}
		cfg.AssetDir = dir
		baseDir = wd
	}

	if cfg.Region == "" && l.region != nil {
		region, err := l.region(ctx)
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve region: %w", err)
		}
		cfg.Region = strings.TrimSpace(region)
	}
	if cfg.Account == "" && cfg.Region != "" && l.account != nil {
		account, err := l.account(ctx, cfg.Region)
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve account: %w", err)
		}
		cfg.Account = strings.TrimSpace(account)
	}

	switch {
	case cfg.AssetDir == "":
		cfg.AssetDir = filepath.Join(ProjectRoot, "bin")
	case !filepath.IsAbs(cfg.AssetDir):
		cfg.AssetDir = filepath.Join(baseDir, cfg.AssetDir)
	}
	cfg.AssetDir = filepath.Clean(cfg.AssetDir)

	if cfg.Account == "" {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingValue, EnvAccount)
	}
	if cfg.Region == "" {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingValue, EnvRegion)
	}
	return cfg, nil
}

// Settings converts the configuration into composer input.
func (c Config) Settings() composer.Settings {
	return composer.Settings{
		Environment: c.Environment,
		Account:     c.Account,
		Region:      c.Region,
		AssetDir:    c.AssetDir,
	}
}

// CheckAsset verifies that the prebuilt function executable exists in c.AssetDir.
func (c Config) CheckAsset() error {
	path := filepath.Join(c.AssetDir, BootstrapName)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAssetMissing, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrAssetMissing, path)
	}
	return nil
}

func (l *loader) get(key string) string {
	v, ok := l.lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
