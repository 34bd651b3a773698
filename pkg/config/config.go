// Package config implements the engine's layered configuration:
// defaults, an optional file, a local .env, and environment variables,
// in that increasing order of precedence, following the shape of
// params/config.go's Default()/LoadFromEnv() pair but on viper instead
// of hand-rolled os.Getenv parsing.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/market"
	"github.com/tradeforge/engine/pkg/timeline"
)

// SymbolConfig mirrors market.SymbolConfig as a config-file-friendly
// shape (plain strings/ints, no registry dependency).
type SymbolConfig struct {
	Symbol     string `mapstructure:"symbol"`
	Base       string `mapstructure:"base"`
	Quote      string `mapstructure:"quote"`
	PriceScale int    `mapstructure:"priceScale"`
	QtyScale   int    `mapstructure:"qtyScale"`
}

func (c SymbolConfig) ToMarket() market.SymbolConfig {
	return market.SymbolConfig{
		Symbol:     ids.SymbolId(c.Symbol),
		Base:       c.Base,
		Quote:      c.Quote,
		PriceScale: c.PriceScale,
		QtyScale:   c.QtyScale,
	}
}

type FeeSchedule struct {
	MakerBps int64 `mapstructure:"makerBps"`
	TakerBps int64 `mapstructure:"takerBps"`
}

type MatchingConfig struct {
	ParticipationFactor     int64 `mapstructure:"participationFactor"`
	TreatLimitAsMaker       bool  `mapstructure:"treatLimitAsMaker"`
	UseAggressorForLiquidity bool `mapstructure:"useAggressorForLiquidity"`
}

type MergeConfig struct {
	PreferDepthOnEqualTs bool `mapstructure:"preferDepthOnEqualTs"`
}

// ReplayClockKind selects which replay.Clock implementation to wire.
type ReplayClockKind string

const (
	ClockLogical     ReplayClockKind = "logical"
	ClockWall        ReplayClockKind = "wall"
	ClockAccelerated ReplayClockKind = "accelerated"
)

type ReplayConfig struct {
	Clock         ReplayClockKind `mapstructure:"clock"`
	Speed         float64         `mapstructure:"speed"`
	MaxEvents     int64           `mapstructure:"maxEvents"`
	MaxSimTimeMs  int64           `mapstructure:"maxSimTimeMs"`
	MaxWallTimeMs int64           `mapstructure:"maxWallTimeMs"`

	// Symbol is the one market this run replays against. TradesPaths and
	// DepthPaths each name one or more .jsonl/.jsonl.gz/.jsonl.zip archive
	// files, read in order, oldest first.
	Symbol      string   `mapstructure:"symbol"`
	TradesPaths []string `mapstructure:"tradesPaths"`
	DepthPaths  []string `mapstructure:"depthPaths"`
	QueueSize   int      `mapstructure:"queueSize"`
	Resume      bool     `mapstructure:"resume"`
}

type CheckpointConfig struct {
	IntervalEvents int64  `mapstructure:"intervalEvents"`
	IntervalWallMs int64  `mapstructure:"intervalWallMs"`
	Path           string `mapstructure:"path"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DbPath  string `mapstructure:"dbPath"`
}

type BoundaryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Config is the engine's full runtime configuration.
type Config struct {
	Symbols    []SymbolConfig   `mapstructure:"symbols"`
	Fee        FeeSchedule      `mapstructure:"fee"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Replay     ReplayConfig     `mapstructure:"replay"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Boundary   BoundaryConfig   `mapstructure:"boundary"`
}

// Preferred converts the config's boolean into the timeline package's
// Source type: Depth when PreferDepthOnEqualTs is set, Trades otherwise.
func (c MergeConfig) Preferred() timeline.Source {
	if c.PreferDepthOnEqualTs {
		return timeline.Depth
	}
	return timeline.Trades
}

// Default returns the built-in configuration: a single BTCUSDT symbol,
// zero fees, participation factor 1, logical-clock replay at speed 1,
// checkpointing every 5000 events or 30s of wall time, archive and the
// boundary adapter both disabled.
func Default() Config {
	return Config{
		Symbols: []SymbolConfig{
			{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", PriceScale: 2, QtyScale: 6},
		},
		Fee: FeeSchedule{MakerBps: 0, TakerBps: 0},
		Matching: MatchingConfig{
			ParticipationFactor:      1,
			TreatLimitAsMaker:        true,
			UseAggressorForLiquidity: false,
		},
		Merge: MergeConfig{PreferDepthOnEqualTs: true},
		Replay: ReplayConfig{
			Clock:     ClockLogical,
			Speed:     1,
			Symbol:    "BTCUSDT",
			QueueSize: 1024,
		},
		Checkpoint: CheckpointConfig{
			IntervalEvents: 5000,
			IntervalWallMs: 30000,
			Path:           "checkpoint.json",
		},
		Archive: ArchiveConfig{Enabled: false, DbPath: "archive.db"},
		Boundary: BoundaryConfig{Enabled: false, Addr: ":8080"},
	}
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("fee.makerBps", cfg.Fee.MakerBps)
	v.SetDefault("fee.takerBps", cfg.Fee.TakerBps)
	v.SetDefault("matching.participationFactor", cfg.Matching.ParticipationFactor)
	v.SetDefault("matching.treatLimitAsMaker", cfg.Matching.TreatLimitAsMaker)
	v.SetDefault("matching.useAggressorForLiquidity", cfg.Matching.UseAggressorForLiquidity)
	v.SetDefault("merge.preferDepthOnEqualTs", cfg.Merge.PreferDepthOnEqualTs)
	v.SetDefault("replay.clock", string(cfg.Replay.Clock))
	v.SetDefault("replay.speed", cfg.Replay.Speed)
	v.SetDefault("replay.maxEvents", cfg.Replay.MaxEvents)
	v.SetDefault("replay.maxSimTimeMs", cfg.Replay.MaxSimTimeMs)
	v.SetDefault("replay.maxWallTimeMs", cfg.Replay.MaxWallTimeMs)
	v.SetDefault("replay.symbol", cfg.Replay.Symbol)
	v.SetDefault("replay.tradesPaths", cfg.Replay.TradesPaths)
	v.SetDefault("replay.depthPaths", cfg.Replay.DepthPaths)
	v.SetDefault("replay.queueSize", cfg.Replay.QueueSize)
	v.SetDefault("replay.resume", cfg.Replay.Resume)
	v.SetDefault("checkpoint.intervalEvents", cfg.Checkpoint.IntervalEvents)
	v.SetDefault("checkpoint.intervalWallMs", cfg.Checkpoint.IntervalWallMs)
	v.SetDefault("checkpoint.path", cfg.Checkpoint.Path)
	v.SetDefault("archive.enabled", cfg.Archive.Enabled)
	v.SetDefault("archive.dbPath", cfg.Archive.DbPath)
	v.SetDefault("boundary.enabled", cfg.Boundary.Enabled)
	v.SetDefault("boundary.addr", cfg.Boundary.Addr)
	v.SetDefault("symbols", symbolMaps(cfg.Symbols))
}

func symbolMaps(symbols []SymbolConfig) []map[string]any {
	out := make([]map[string]any, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, map[string]any{
			"symbol": s.Symbol, "base": s.Base, "quote": s.Quote,
			"priceScale": s.PriceScale, "qtyScale": s.QtyScale,
		})
	}
	return out
}

// Load builds a Config by layering, lowest to highest precedence:
// built-in defaults, an optional file at path (YAML or JSON, by
// extension), a local .env file (loaded via godotenv, feeding process
// environment variables viper then reads), and TRADEFORGE_-prefixed
// environment variables. A missing path or .env file is not an error;
// a present but malformed file is.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("TRADEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
