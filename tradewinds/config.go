package tradewinds

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Bot     BotConfig     `toml:"bot"`
	DB      DBConfig      `toml:"db"`
	Economy EconomyConfig `toml:"economy"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

// EconomyConfig carries every tunable of the simulation. Zero values are
// replaced by the defaults below so a partial [economy] section is fine.
type EconomyConfig struct {
	StartingTreasury   int64   `toml:"starting_treasury"`
	TreasuryCap        int64   `toml:"treasury_cap"`
	AllowNegative      bool    `toml:"allow_negative"`
	FluctuationRange   float64 `toml:"fluctuation_range"`
	TickMinutes        int     `toml:"tick_minutes"`
	PassiveMinutes     int     `toml:"passive_minutes"`
	PassiveMemberRate  int64   `toml:"passive_member_rate"`
	PassiveMemberCap   int     `toml:"passive_member_cap"`
	StartingBalance    int64   `toml:"starting_balance"`
	WorkMinReward      int64   `toml:"work_min_reward"`
	WorkMaxReward      int64   `toml:"work_max_reward"`
	WorkCooldownHours  int     `toml:"work_cooldown_hours"`
	DailyReward        int64   `toml:"daily_reward"`
	InfluenceCooldownH int     `toml:"influence_cooldown_hours"`
	TaxRate            float64 `toml:"tax_rate"`
	TransferFee        float64 `toml:"transfer_fee"`
	WealthTaxRate      float64 `toml:"wealth_tax_rate"`
	EventMinHours      int     `toml:"event_min_hours"`
	EventMaxHours      int     `toml:"event_max_hours"`
	EventVotingMinutes int     `toml:"event_voting_minutes"`
	HistoryRetention   int     `toml:"history_retention"`
}

func DefaultConfig() Config {
	return Config{
		Economy: EconomyConfig{
			StartingTreasury:   10_000,
			TreasuryCap:        10_000_000,
			FluctuationRange:   0.5,
			TickMinutes:        1,
			PassiveMinutes:     5,
			PassiveMemberRate:  10,
			PassiveMemberCap:   1000,
			StartingBalance:    100,
			WorkMinReward:      50,
			WorkMaxReward:      200,
			WorkCooldownHours:  1,
			DailyReward:        100,
			InfluenceCooldownH: 6,
			TaxRate:            0.05,
			TransferFee:        0.02,
			WealthTaxRate:      0.01,
			EventMinHours:      1,
			EventMaxHours:      24,
			EventVotingMinutes: 60,
			HistoryRetention:   10_000,
		},
	}
}
