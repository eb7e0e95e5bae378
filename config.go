// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// This file defines the Config struct (all the knobs the engine uses) and a
// helper to populate it from environment variables. The .env file is read
// by loadBotEnv() (see env.go), so you can tune behavior without exports.
//
// Typical flow (see main.go):
//   loadBotEnv()
//   cfg := loadConfigFromEnv()
//
// Defaults mirror the paper-trading setup this engine grew out of: 5-minute
// bars over 2 days, ATR(14) brackets, 60-bar minimum history, a 0.65 score
// floor, and conservative daily / position caps.

package main

import "time"

// Config holds all runtime knobs for trading and operations.
type Config struct {
	// Gateway sidecar
	GatewayURL      string // e.g. http://127.0.0.1:7497 (empty => paper gateway)
	GatewayClientID int
	ConnectAttempts int
	ConnectBackoff  time.Duration
	ReqTimeout      time.Duration
	DrainWindow     time.Duration // post-call wait for async gateway errors

	// Files
	UniverseFile string
	StateFile    string
	EntryLog     string
	CloseLog     string
	ScanLog      string

	// Loop control
	LoopInterval  time.Duration // sleep between cycles while a session is open
	ClosedSleep   time.Duration // sleep when every session is closed
	EvalPause     time.Duration // pacing between per-symbol history requests
	DispatchPause time.Duration // pacing between order dispatches

	// Caps
	MaxOpenPositions     int
	MaxTradesPerDay      int
	MaxNewTradesPerCycle int

	// Market data
	BarDuration string // e.g. "2 D"
	BarSize     string // e.g. "5 mins"
	UseRTH      bool

	// Scoring
	MinScore     float64
	MinBars      int
	MinPrice     float64
	MaxPrice     float64
	MinATRPct    float64
	MaxATRPct    float64
	TargetATRPct float64
	FastSMA      int
	SlowSMA      int
	ATRLength    int
	RSILength    int
	WMomentum    float64
	WOscillator  float64
	WVolatility  float64

	// Sizing
	SizingMode      string // "risk" or "notional"
	AccountEquity   float64
	RiskPerTradePct float64
	CapitalPerTrade float64
	SizeMinOneShare bool // notional mode only: floor at 1 share like the old sizer

	// Brackets
	BracketMode   string // "atr" or "pct"
	TakeProfitATR float64
	StopLossATR   float64
	TakeProfitPct float64
	StopLossPct   float64
	PriceTick     float64
	FillWait      time.Duration
	StatusPoll    time.Duration

	// Suppression TTLs
	ShortBlock time.Duration // data-quality / failed placement
	LongBlock  time.Duration // permission / missing contract

	// Ops
	Port     int
	LogLevel string
	LogFile  string
}

// ScoreConfig extracts the scorer's knobs; scoreSeries takes this so the
// scorer stays a pure function over (series, config).
func (c Config) ScoreConfig() ScoreConfig {
	return ScoreConfig{
		MinBars:      c.MinBars,
		MinPrice:     c.MinPrice,
		MaxPrice:     c.MaxPrice,
		MinATRPct:    c.MinATRPct,
		MaxATRPct:    c.MaxATRPct,
		TargetATRPct: c.TargetATRPct,
		FastSMA:      c.FastSMA,
		SlowSMA:      c.SlowSMA,
		ATRLength:    c.ATRLength,
		RSILength:    c.RSILength,
		WMomentum:    c.WMomentum,
		WOscillator:  c.WOscillator,
		WVolatility:  c.WVolatility,
	}
}

// BracketParams extracts the order-lifecycle knobs (see orders.go).
func (c Config) BracketParams() BracketParams {
	return BracketParams{
		Mode:          c.BracketMode,
		TakeProfitATR: c.TakeProfitATR,
		StopLossATR:   c.StopLossATR,
		TakeProfitPct: c.TakeProfitPct,
		StopLossPct:   c.StopLossPct,
		PriceTick:     c.PriceTick,
		FillWait:      c.FillWait,
		StatusPoll:    c.StatusPoll,
	}
}

// loadConfigFromEnv reads the process env (already hydrated by loadBotEnv())
// and returns a Config with sane defaults if keys are missing.
func loadConfigFromEnv() Config {
	return Config{
		GatewayURL:      getEnv("GATEWAY_URL", ""),
		GatewayClientID: getEnvInt("GATEWAY_CLIENT_ID", 1),
		ConnectAttempts: getEnvInt("CONNECT_ATTEMPTS", 8),
		ConnectBackoff:  time.Duration(getEnvInt("CONNECT_BACKOFF_SEC", 2)) * time.Second,
		ReqTimeout:      time.Duration(getEnvInt("REQ_TIMEOUT_SEC", 15)) * time.Second,
		DrainWindow:     time.Duration(getEnvInt("DRAIN_WINDOW_MS", 300)) * time.Millisecond,

		UniverseFile: getEnv("UNIVERSE_FILE", "universe.yaml"),
		StateFile:    getEnv("STATE_FILE", "bot_state.json"),
		EntryLog:     getEnv("ENTRY_LOG", "trade_log.csv"),
		CloseLog:     getEnv("CLOSE_LOG", "trade_close_log.csv"),
		ScanLog:      getEnv("SCAN_LOG", "scan_log.csv"),

		LoopInterval:  time.Duration(getEnvInt("LOOP_SECONDS", 20)) * time.Second,
		ClosedSleep:   time.Duration(getEnvInt("CLOSED_SLEEP_SECONDS", 60)) * time.Second,
		EvalPause:     time.Duration(getEnvInt("EVAL_PAUSE_MS", 150)) * time.Millisecond,
		DispatchPause: time.Duration(getEnvInt("DISPATCH_PAUSE_MS", 500)) * time.Millisecond,

		MaxOpenPositions:     getEnvInt("MAX_OPEN_POSITIONS", 1),
		MaxTradesPerDay:      getEnvInt("MAX_TRADES_PER_DAY", 2),
		MaxNewTradesPerCycle: getEnvInt("MAX_NEW_TRADES_PER_CYCLE", 3),

		BarDuration: getEnv("BAR_DURATION", "2 D"),
		BarSize:     getEnv("BAR_SIZE", "5 mins"),
		UseRTH:      getEnvBool("USE_RTH", true),

		MinScore:     getEnvFloat("MIN_SCORE", 0.65),
		MinBars:      getEnvInt("MIN_BARS", 60),
		MinPrice:     getEnvFloat("MIN_PRICE", 5),
		MaxPrice:     getEnvFloat("MAX_PRICE", 2000),
		MinATRPct:    getEnvFloat("MIN_ATR_PCT", 0.002),
		MaxATRPct:    getEnvFloat("MAX_ATR_PCT", 0.08),
		TargetATRPct: getEnvFloat("TARGET_ATR_PCT", 0.015),
		FastSMA:      getEnvInt("FAST_SMA", 10),
		SlowSMA:      getEnvInt("SLOW_SMA", 30),
		ATRLength:    getEnvInt("ATR_LENGTH", 14),
		RSILength:    getEnvInt("RSI_LENGTH", 14),
		WMomentum:    getEnvFloat("WEIGHT_MOMENTUM", 0.35),
		WOscillator:  getEnvFloat("WEIGHT_OSCILLATOR", 0.35),
		WVolatility:  getEnvFloat("WEIGHT_VOLATILITY", 0.30),

		SizingMode:      getEnv("SIZING_MODE", "risk"),
		AccountEquity:   getEnvFloat("ACCOUNT_EQUITY", 5000.0),
		RiskPerTradePct: getEnvFloat("RISK_PER_TRADE_PCT", 0.01),
		CapitalPerTrade: getEnvFloat("CAPITAL_PER_TRADE", 2000.0),
		SizeMinOneShare: getEnvBool("SIZE_MIN_ONE_SHARE", false),

		BracketMode:   getEnv("BRACKET_MODE", "atr"),
		TakeProfitATR: getEnvFloat("TAKE_PROFIT_ATR", 1.5),
		StopLossATR:   getEnvFloat("STOP_LOSS_ATR", 1.0),
		TakeProfitPct: getEnvFloat("TAKE_PROFIT_PCT", 0.012),
		StopLossPct:   getEnvFloat("STOP_LOSS_PCT", 0.007),
		PriceTick:     getEnvFloat("PRICE_TICK", 0.01),
		FillWait:      time.Duration(getEnvInt("FILL_WAIT_SEC", 5)) * time.Second,
		StatusPoll:    time.Duration(getEnvInt("STATUS_POLL_MS", 250)) * time.Millisecond,

		ShortBlock: getEnvMinutes("SHORT_BLOCK_MIN", 60),
		LongBlock:  getEnvMinutes("LONG_BLOCK_MIN", 180),

		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}
