package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sigtrader/internal/backtest"
	"sigtrader/internal/broker"
	"sigtrader/internal/logging"
	"sigtrader/internal/md"
	"sigtrader/internal/risk"
	"sigtrader/internal/strategy"
)

type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)

const (
	SourcePoll   = "poll"
	SourceStream = "stream"
)

// Config is the full runtime surface. Load fills it from defaults, an
// optional YAML file, the environment and finally command line flags.
type Config struct {
	Mode     Mode   `yaml:"mode"`
	Symbol   string `yaml:"symbol"`
	Strategy string `yaml:"strategy"`

	Params strategy.Params `yaml:",inline"`

	StopLoss    float64       `yaml:"stop_loss"`
	OrderQty    int           `yaml:"order_qty"`
	OrderType   string        `yaml:"order_type"`
	TimeInForce string        `yaml:"time_in_force"`
	Interval    time.Duration `yaml:"interval"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	HistoryBars int           `yaml:"history_bars"`
	SeedDays    int           `yaml:"seed_days"`
	LiveSource  string        `yaml:"live_source"`

	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	Exposure  string `yaml:"exposure"`
	Feed      string `yaml:"feed"`
	TimeFrame string `yaml:"timeframe"`
	DataCSV   string `yaml:"data_csv"`

	KillSwitch  bool    `yaml:"kill_switch"`
	MaxNotional float64 `yaml:"max_notional"`

	DecisionsPath  string `yaml:"decisions_path"`
	CheckpointPath string `yaml:"checkpoint_path"`
	ReportCSV      string `yaml:"report_csv"`
	ReportSVG      string `yaml:"report_svg"`
	MetricsAddr    string `yaml:"metrics_addr"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`

	PaperBaseURL string `yaml:"paper_base_url"`
	APIKey       string `yaml:"-"`
	APISecret    string `yaml:"-"`
}

func Defaults() Config {
	return Config{
		Mode:           ModeBacktest,
		Symbol:         "AAPL",
		Strategy:       string(strategy.KindTrend),
		Params:         strategy.DefaultParams(),
		StopLoss:       0.05,
		OrderQty:       10,
		OrderType:      "market",
		TimeInForce:    "gtc",
		Interval:       60 * time.Second,
		RetryDelay:     60 * time.Second,
		HistoryBars:    500,
		SeedDays:       365,
		LiveSource:     SourcePoll,
		StartDate:      "2020-01-01",
		EndDate:        "2022-01-01",
		Exposure:       string(backtest.LongShort),
		Feed:           "iex",
		TimeFrame:      "1Day",
		DecisionsPath:  "decisions.ndjson",
		CheckpointPath: "checkpoint.json",
		LogLevel:       "info",
		LogFormat:      logging.FormatText,
		PaperBaseURL:   "https://paper-api.alpaca.markets",
	}
}

// Load resolves configuration from args (without the program name).
func Load(args []string) (Config, error) {
	// First pass only discovers -config and -env-file; the values it binds
	// are discarded.
	probe := Defaults()
	var configPath, envPath string
	pre := newFlagSet(&probe, &configPath, &envPath)
	pre.SetOutput(io.Discard)
	if err := pre.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			newFlagSet(&probe, &configPath, &envPath).Usage()
		}
		return Config{}, err
	}

	cfg := Defaults()
	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := loadDotEnv(envPath); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs := newFlagSet(&cfg, &configPath, &envPath)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, configPath, envPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet("sigtrader", flag.ContinueOnError)
	fs.StringVar(configPath, "config", "", "path to a YAML config file")
	fs.StringVar(envPath, "env-file", ".env", "dotenv file loaded when present")

	fs.Func("mode", "run mode: backtest or live (default "+string(cfg.Mode)+")", func(v string) error {
		cfg.Mode = Mode(v)
		return nil
	})
	fs.StringVar(&cfg.Symbol, "symbol", cfg.Symbol, "trading symbol")
	fs.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "strategy: trend, meanrev or momentum")
	fs.IntVar(&cfg.Params.ShortWindow, "short-window", cfg.Params.ShortWindow, "trend short moving average window")
	fs.IntVar(&cfg.Params.LongWindow, "long-window", cfg.Params.LongWindow, "trend long moving average window")
	fs.IntVar(&cfg.Params.BandWindow, "band-window", cfg.Params.BandWindow, "mean reversion band window")
	fs.Float64Var(&cfg.Params.NumStd, "num-std", cfg.Params.NumStd, "mean reversion band width in standard deviations")
	fs.IntVar(&cfg.Params.MomentumPeriod, "momentum-period", cfg.Params.MomentumPeriod, "momentum lookback period")

	fs.Float64Var(&cfg.StopLoss, "stop-loss", cfg.StopLoss, "stop-loss threshold as a fraction of entry price")
	fs.IntVar(&cfg.OrderQty, "qty", cfg.OrderQty, "order quantity in shares")
	fs.StringVar(&cfg.OrderType, "order-type", cfg.OrderType, "order type: market or limit")
	fs.StringVar(&cfg.TimeInForce, "time-in-force", cfg.TimeInForce, "time in force: day, gtc or ioc")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "live cycle interval")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "wait after a failed fetch")
	fs.IntVar(&cfg.HistoryBars, "history-bars", cfg.HistoryBars, "bars of history retained in live mode")
	fs.IntVar(&cfg.SeedDays, "seed-days", cfg.SeedDays, "days of history loaded before live trading")
	fs.StringVar(&cfg.LiveSource, "live-source", cfg.LiveSource, "live bar source: poll or stream")

	fs.StringVar(&cfg.StartDate, "start", cfg.StartDate, "backtest start date (YYYY-MM-DD)")
	fs.StringVar(&cfg.EndDate, "end", cfg.EndDate, "backtest end date (YYYY-MM-DD)")
	fs.StringVar(&cfg.Exposure, "exposure", cfg.Exposure, "backtest exposure: long-short or long-only")
	fs.StringVar(&cfg.Feed, "feed", cfg.Feed, "market data feed: iex, sip or test")
	fs.StringVar(&cfg.TimeFrame, "timeframe", cfg.TimeFrame, "bar timeframe: 1Min, 5Min, 15Min, 1Hour or 1Day")
	fs.StringVar(&cfg.DataCSV, "data-csv", cfg.DataCSV, "read backtest bars from this CSV instead of Alpaca")

	fs.BoolVar(&cfg.KillSwitch, "kill-switch", cfg.KillSwitch, "if true, never open positions")
	fs.Float64Var(&cfg.MaxNotional, "max-notional", cfg.MaxNotional, "max notional per entry, 0 disables")

	fs.StringVar(&cfg.DecisionsPath, "decisions-path", cfg.DecisionsPath, "path to decisions log")
	fs.StringVar(&cfg.CheckpointPath, "checkpoint-path", cfg.CheckpointPath, "path to checkpoint file")
	fs.StringVar(&cfg.ReportCSV, "report-csv", cfg.ReportCSV, "write backtest curves to this CSV file")
	fs.StringVar(&cfg.ReportSVG, "report-svg", cfg.ReportSVG, "write the backtest chart to this SVG file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.PaperBaseURL, "paper-base-url", cfg.PaperBaseURL, "paper trading base URL")
	return fs
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml %s: %w", path, err)
	}
	return nil
}

// loadDotEnv loads path into the process environment when it exists.
// Variables already set are left alone.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.PaperBaseURL = v
	}
	if v := os.Getenv("APCA_API_DATA_FEED"); v != "" {
		cfg.Feed = v
	}
	if v := os.Getenv("SIGTRADER_SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("SIGTRADER_STRATEGY"); v != "" {
		cfg.Strategy = v
	}
	if v := os.Getenv("SIGTRADER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SIGTRADER_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SIGTRADER_KILL_SWITCH"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SIGTRADER_KILL_SWITCH: %w", err)
		}
		cfg.KillSwitch = on
	}
	return nil
}

// Start and End return the backtest window. They are valid after Load.
func (c Config) Start() time.Time {
	t, _ := time.Parse(time.DateOnly, c.StartDate)
	return t
}

func (c Config) End() time.Time {
	t, _ := time.Parse(time.DateOnly, c.EndDate)
	return t
}

func validate(cfg Config) error {
	if cfg.Mode != ModeBacktest && cfg.Mode != ModeLive {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if strings.TrimSpace(cfg.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	kind, err := strategy.ParseKind(cfg.Strategy)
	if err != nil {
		return err
	}
	if _, err := strategy.New(kind, cfg.Params); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if _, err := md.ParseTimeFrame(cfg.TimeFrame); err != nil {
		return err
	}

	needsAlpaca := cfg.Mode == ModeLive || cfg.DataCSV == ""
	if needsAlpaca && (cfg.APIKey == "" || cfg.APISecret == "") {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required in %s mode", cfg.Mode)
	}

	switch cfg.Mode {
	case ModeBacktest:
		start, err := time.Parse(time.DateOnly, cfg.StartDate)
		if err != nil {
			return fmt.Errorf("start date: %w", err)
		}
		end, err := time.Parse(time.DateOnly, cfg.EndDate)
		if err != nil {
			return fmt.Errorf("end date: %w", err)
		}
		if !end.After(start) {
			return fmt.Errorf("end date %s must be after start date %s", cfg.EndDate, cfg.StartDate)
		}
		if _, err := backtest.ParseExposure(cfg.Exposure); err != nil {
			return err
		}
	case ModeLive:
		if err := risk.ValidateStopLoss(cfg.StopLoss); err != nil {
			return err
		}
		if cfg.OrderQty <= 0 {
			return fmt.Errorf("qty must be > 0")
		}
		if cfg.MaxNotional < 0 {
			return fmt.Errorf("max-notional must be >= 0")
		}
		if cfg.Interval <= 0 {
			return fmt.Errorf("interval must be > 0")
		}
		if cfg.RetryDelay <= 0 {
			return fmt.Errorf("retry-delay must be > 0")
		}
		if cfg.SeedDays <= 0 {
			return fmt.Errorf("seed-days must be > 0")
		}
		if cfg.HistoryBars <= 0 {
			return fmt.Errorf("history-bars must be > 0")
		}
		if cfg.LiveSource != SourcePoll && cfg.LiveSource != SourceStream {
			return fmt.Errorf("invalid live-source: %s", cfg.LiveSource)
		}
		if _, err := broker.ParseOrderType(cfg.OrderType); err != nil {
			return err
		}
		if _, err := broker.ParseTimeInForce(cfg.TimeInForce); err != nil {
			return err
		}
	}
	return nil
}
