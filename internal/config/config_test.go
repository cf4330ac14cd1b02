package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sigtrader/internal/backtest"
	"sigtrader/internal/strategy"
)

func validLive() Config {
	cfg := Defaults()
	cfg.Mode = ModeLive
	cfg.APIKey = "key"
	cfg.APISecret = "secret"
	return cfg
}

func TestValidateConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]func(*Config){
		"mode":          func(c *Config) { c.Mode = "paper" },
		"strategy":      func(c *Config) { c.Strategy = "sma" },
		"windows":       func(c *Config) { c.Params.ShortWindow = 200 },
		"stop loss":     func(c *Config) { c.StopLoss = 1.5 },
		"qty":           func(c *Config) { c.OrderQty = 0 },
		"interval":      func(c *Config) { c.Interval = 0 },
		"live source":   func(c *Config) { c.LiveSource = "carrier-pigeon" },
		"time in force": func(c *Config) { c.TimeInForce = "fok" },
		"credentials":   func(c *Config) { c.APISecret = "" },
		"log level":     func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		cfg := validLive()
		mutate(&cfg)
		if err := validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateConfigAcceptsValidConfig(t *testing.T) {
	if err := validate(validLive()); err != nil {
		t.Fatalf("expected live config to be valid, got %v", err)
	}

	cfg := Defaults()
	cfg.DataCSV = "bars.csv"
	if err := validate(cfg); err != nil {
		t.Fatalf("expected CSV backtest without credentials to be valid, got %v", err)
	}
}

func TestValidateBacktestWindow(t *testing.T) {
	cfg := Defaults()
	cfg.DataCSV = "bars.csv"
	cfg.EndDate = "2019-12-31"
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for end before start")
	}
	cfg.EndDate = "2022-01-01"
	cfg.Exposure = "short-only"
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for unknown exposure")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	configContents := `mode: live
symbol: MSFT
strategy: momentum
momentum_period: 5
order_qty: 5
interval: 30s
stop_loss: 0.1
`
	if err := os.WriteFile(configPath, []byte(configContents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SIGTRADER_SYMBOL", "SPY")
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "env-secret")

	cfg, err := Load([]string{
		"-config", configPath,
		"-env-file", "",
		"-strategy", "meanrev",
		"-qty", "2",
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Mode != ModeLive {
		t.Fatalf("expected mode from file, got %q", cfg.Mode)
	}
	if cfg.Symbol != "SPY" {
		t.Fatalf("expected symbol from env, got %q", cfg.Symbol)
	}
	if cfg.Strategy != "meanrev" {
		t.Fatalf("expected strategy from CLI, got %q", cfg.Strategy)
	}
	if cfg.OrderQty != 2 {
		t.Fatalf("expected qty from CLI, got %d", cfg.OrderQty)
	}
	if cfg.Params.MomentumPeriod != 5 {
		t.Fatalf("expected momentum period from file, got %d", cfg.Params.MomentumPeriod)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("expected interval from file, got %s", cfg.Interval)
	}
	if cfg.Params.BandWindow != 20 {
		t.Fatalf("expected default band window, got %d", cfg.Params.BandWindow)
	}
	if cfg.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.APIKey)
	}
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("llm_model: tiny\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load([]string{"-config", configPath, "-env-file", ""}); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestBacktestWindow(t *testing.T) {
	cfg := Defaults()
	if got := cfg.Start(); !got.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", got)
	}
	if got := cfg.End(); !got.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", got)
	}
}

func TestLoadDotEnvSetsValues(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, ".env")
	content := "APCA_API_KEY_ID=abc123\nAPCA_API_SECRET_KEY=shh\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET_KEY", "")
	unsetEnv(t, "APCA_API_KEY_ID")
	unsetEnv(t, "APCA_API_SECRET_KEY")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv error: %v", err)
	}

	if got := os.Getenv("APCA_API_KEY_ID"); got != "abc123" {
		t.Fatalf("expected key to be set, got %q", got)
	}
	if got := os.Getenv("APCA_API_SECRET_KEY"); got != "shh" {
		t.Fatalf("expected secret to be set, got %q", got)
	}
}

func TestLoadDotEnvDoesNotOverrideExisting(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, ".env")
	content := "APCA_API_KEY_ID=from_file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APCA_API_KEY_ID", "from_env")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv error: %v", err)
	}

	if got := os.Getenv("APCA_API_KEY_ID"); got != "from_env" {
		t.Fatalf("expected env to win, got %q", got)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

// unsetEnv relies on a prior t.Setenv to restore the original value.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset env: %v", err)
	}
}

func TestDefaultBacktestShortsOnSell(t *testing.T) {
	exposure, err := backtest.ParseExposure(Defaults().Exposure)
	if err != nil {
		t.Fatalf("parse default exposure: %v", err)
	}
	day := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	points := []strategy.Point{
		{Time: day, Close: 100},
		{Time: day.AddDate(0, 0, 1), Close: 90, Position: strategy.Sell},
	}
	curves, err := backtest.Evaluate(points, exposure)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := curves.StrategyReturns[1]; got < 0.0999999 || got > 0.1000001 {
		t.Fatalf("expected +0.1 on a falling bar while short, got %v", got)
	}
}
