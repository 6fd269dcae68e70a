package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) Option {
	return WithLookup(func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	})
}

func noRegion(context.Context) (string, error) { return "", nil }

func TestLoad_FromEnvironment(t *testing.T) {
	cfg, err := Load(context.Background(), envMap(map[string]string{
		EnvAccount: "123456789012",
		EnvRegion:  "us-east-1",
	}), WithRegionResolver(noRegion))
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Environment)
	require.Equal(t, "123456789012", cfg.Account)
	require.Equal(t, "us-east-1", cfg.Region)
	require.Equal(t, filepath.Join(ProjectRoot, "bin"), cfg.AssetDir)

	s := cfg.Settings()
	require.Equal(t, cfg.Environment, s.Environment)
	require.Equal(t, cfg.AssetDir, s.AssetDir)
}

func TestLoad_MissingAccount(t *testing.T) {
	_, err := Load(context.Background(), envMap(map[string]string{
		EnvRegion: "us-east-1",
	}), WithRegionResolver(noRegion), WithAccountResolver(nil))
	require.ErrorIs(t, err, ErrMissingValue)
	require.Contains(t, err.Error(), EnvAccount)
}

func TestLoad_AccountFallback(t *testing.T) {
	var gotRegion string
	cfg, err := Load(context.Background(), envMap(map[string]string{
		EnvRegion: "eu-central-1",
	}), WithRegionResolver(noRegion), WithAccountResolver(func(_ context.Context, region string) (string, error) {
		gotRegion = region
		return " 333333333333 ", nil
	}))
	require.NoError(t, err)
	require.Equal(t, "333333333333", cfg.Account)
	require.Equal(t, "eu-central-1", gotRegion)
}

func TestLoad_AccountFallbackError(t *testing.T) {
	boom := errors.New("no credentials")
	_, err := Load(context.Background(), envMap(map[string]string{
		EnvRegion: "us-east-1",
	}), WithRegionResolver(noRegion), WithAccountResolver(func(context.Context, string) (string, error) {
		return "", boom
	}))
	require.ErrorIs(t, err, boom)
}

func TestLoad_MissingRegionSkipsAccountFallback(t *testing.T) {
	_, err := Load(context.Background(), envMap(map[string]string{}),
		WithRegionResolver(nil),
		WithAccountResolver(func(context.Context, string) (string, error) {
			t.Fatal("account fallback needs a region")
			return "", nil
		}))
	require.ErrorIs(t, err, ErrMissingValue)
}

func TestLoad_MissingRegion(t *testing.T) {
	_, err := Load(context.Background(), envMap(map[string]string{
		EnvAccount: "123456789012",
	}), WithRegionResolver(nil))
	require.ErrorIs(t, err, ErrMissingValue)
	require.Contains(t, err.Error(), EnvRegion)
}

func TestLoad_RegionFallback(t *testing.T) {
	cfg, err := Load(context.Background(), envMap(map[string]string{
		EnvAccount: "123456789012",
	}), WithRegionResolver(func(context.Context) (string, error) { return "eu-west-1", nil }))
	require.NoError(t, err)
	require.Equal(t, "eu-west-1", cfg.Region)
}

func TestLoad_RegionFallbackError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Load(context.Background(), envMap(map[string]string{
		EnvAccount: "123456789012",
	}), WithRegionResolver(func(context.Context) (string, error) { return "", boom }))
	require.ErrorIs(t, err, boom)
}

func TestLoad_ExplicitRegionSkipsFallback(t *testing.T) {
	cfg, err := Load(context.Background(), envMap(map[string]string{
		EnvAccount: "123456789012",
		EnvRegion:  "us-west-2",
	}), WithRegionResolver(func(context.Context) (string, error) {
		t.Fatal("fallback should not run")
		return "", nil
	}))
	require.NoError(t, err)
	require.Equal(t, "us-west-2", cfg.Region)
}

func TestLoad_FileThenEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apistack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: dev
account: "111111111111"
region: us-west-2
asset_dir: build
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(context.Background(), envMap(map[string]string{
		EnvFile:    path,
		EnvAccount: "222222222222",
	}), WithRegionResolver(noRegion))
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Environment)
	require.Equal(t, "222222222222", cfg.Account)
	require.Equal(t, "us-west-2", cfg.Region)
	require.Equal(t, filepath.Join(dir, "build"), cfg.AssetDir)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_RejectsUnknownFileKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apistack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regoin: us-east-1\n"), 0o600))

	_, err := Load(context.Background(), envMap(map[string]string{EnvFile: path}), WithRegionResolver(noRegion))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), envMap(map[string]string{
		EnvFile: filepath.Join(t.TempDir(), "nope.yaml"),
	}), WithRegionResolver(noRegion))
	require.Error(t, err)
}

func TestCheckAsset(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{AssetDir: dir}
	require.ErrorIs(t, cfg.CheckAsset(), ErrAssetMissing)

	require.NoError(t, os.Mkdir(filepath.Join(dir, BootstrapName), 0o755))
	require.ErrorIs(t, cfg.CheckAsset(), ErrAssetMissing)

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, BootstrapName), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, Config{AssetDir: other}.CheckAsset())
}

func TestLoad_RelativeAssetDirFromEnvironmentUsesWorkingDirectory(t *testing.T) {
	wd := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(wd))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	cfg, err := Load(context.Background(), envMap(map[string]string{
		EnvAccount:  "123456789012",
		EnvRegion:   "us-east-1",
		EnvAssetDir: "dist/fn",
	}), WithRegionResolver(noRegion))
	require.NoError(t, err)

	require.Equal(t, filepath.Join(wd, "dist", "fn"), cfg.AssetDir)
}
