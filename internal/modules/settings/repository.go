package settings

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// strategyConfigKey is the strategy_settings row holding the engine parameters
const strategyConfigKey = "strategy_config"

// Repository handles strategy settings stored in config.db
type Repository struct {
	configDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new settings repository
func NewRepository(configDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		configDB: configDB,
		log:      log.With().Str("repo", "settings").Logger(),
	}
}

// Load reads the strategy configuration. Returns defaults when nothing has
// been stored yet. The returned config is NOT validated; callers validate
// once per evaluation cycle.
func (r *Repository) Load() (StrategyConfig, error) {
	var value string
	err := r.configDB.QueryRow(
		`SELECT value FROM strategy_settings WHERE key = ?`, strategyConfigKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultStrategyConfig(), nil
	}
	if err != nil {
		return StrategyConfig{}, fmt.Errorf("failed to load strategy config: %w", err)
	}

	var cfg StrategyConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return StrategyConfig{}, fmt.Errorf("failed to decode strategy config: %w", err)
	}

	return cfg, nil
}

// Save validates and persists the strategy configuration
func (r *Repository) Save(cfg StrategyConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	encoded, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode strategy config: %w", err)
	}

	_, err = r.configDB.Exec(
		`INSERT INTO strategy_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		strategyConfigKey, string(encoded), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save strategy config: %w", err)
	}

	r.log.Info().Int("windows", len(cfg.Windows)).Msg("Strategy configuration saved")
	return nil
}
