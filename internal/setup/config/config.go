package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/squadhub/squadlink/internal/roles"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
	CurrentWorkerVersion = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
	Worker WorkerConfig
}

// CommonConfig contains configuration shared between bot and worker.
type CommonConfig struct {
	// Version of the common config.
	Version       int                 `koanf:"version"`
	Debug         Debug               `koanf:"debug"`
	PostgreSQL    PostgreSQL          `koanf:"postgresql"`
	Redis         Redis               `koanf:"redis"`
	BattleMetrics BattleMetrics       `koanf:"battlemetrics"`
	Link          Link                `koanf:"link"`
	Verification  Verification        `koanf:"verification"`
	Sync          Sync                `koanf:"sync"`
	Roles         []roles.GroupConfig `koanf:"roles"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// HTTP whitelist server configuration.
	Server Server `koanf:"server"`
}

// WorkerConfig contains worker specific configuration.
type WorkerConfig struct {
	// Version of the worker config.
	Version int `koanf:"version"`
	// Startup delay in milliseconds.
	StartupDelay int `koanf:"startup_delay"`
	// Full-guild sync interval in minutes.
	SyncIntervalMinutes int `koanf:"sync_interval_minutes"`
	// Expired code purge interval in minutes.
	PurgeIntervalMinutes int `koanf:"purge_interval_minutes"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// BattleMetrics contains player-management API configuration.
type BattleMetrics struct {
	// API base URL.
	BaseURL string `koanf:"base_url"`
	// API token.
	Token string `koanf:"token"`
	// Minimum spacing between requests in milliseconds.
	RequestIntervalMS int `koanf:"request_interval_ms"`
	// Flag ID marking whitelisted members on the API.
	MemberFlagID string `koanf:"member_flag_id"`
}

// Link contains account-link configuration.
type Link struct {
	// Days a user must wait after unlinking before linking a different Steam ID.
	RelinkCooldownDays int `koanf:"relink_cooldown_days"`
}

// Verification contains verification code configuration.
type Verification struct {
	// Characters per code.
	CodeLength int `koanf:"code_length"`
	// Minutes before an unredeemed code expires.
	CodeTTLMinutes int `koanf:"code_ttl_minutes"`
}

// Sync contains role-whitelist sync configuration.
type Sync struct {
	// Guild whose roles are tracked.
	GuildID uint64 `koanf:"guild_id"`
	// Members per bulk sync batch.
	BatchSize int `koanf:"batch_size"`
	// Seconds between bulk sync batches.
	BatchDelaySeconds int `koanf:"batch_delay_seconds"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Guild where commands are registered; global when zero.
	GuildID uint64 `koanf:"guild_id"`
	// Role IDs allowed to use admin subcommands.
	AdminRoleIDs []uint64 `koanf:"admin_role_ids"`
}

// Server contains HTTP whitelist server configuration.
type Server struct {
	// Listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// Shared secret the game server presents when redeeming codes.
	RedeemToken string `koanf:"redeem_token"`
	// Seconds a rendered whitelist stays cached.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".squadlink",
		homeDir + "/.squadlink/config",
		"/etc/squadlink/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	configFiles := []string{"common", "bot", "worker"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("worker", config.Worker.Version, CurrentWorkerVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/squadhub/squadlink/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
