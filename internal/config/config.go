package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Change feed / backup queue. Empty AMQPURL selects the in-process
	// feed and disables the backup queue.
	AMQPURL           string
	AMQPPrefsExchange string
	AMQPBackupQueue   string

	// Sessions
	SessionTTL time.Duration

	// Theme fast-path cache
	PrefsCachePath string

	// Google Sheets backup
	BackupSpreadsheetID string
	BackupSheetName     string
	BackupSweepInterval time.Duration
	BackupBatchSize     int
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/moneymanager.db"),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPPrefsExchange: getEnv("AMQP_PREFS_EXCHANGE", "user_preferences_changes"),
		AMQPBackupQueue:   getEnv("AMQP_BACKUP_QUEUE", "spend_log_backup"),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		PrefsCachePath: getEnv("PREFS_CACHE_PATH", "./data/prefs_cache.json"),

		BackupSpreadsheetID: getEnv("BACKUP_SPREADSHEET_ID", ""),
		BackupSheetName:     getEnv("BACKUP_SHEET_NAME", "SpendLogs"),
		BackupSweepInterval: getEnvDuration("BACKUP_SWEEP_INTERVAL", 5*time.Minute),
		BackupBatchSize:     getEnvInt("BACKUP_BATCH_SIZE", 50),
	}
}

// Validate checks the configuration, collecting every problem into a
// single error so a misconfigured deployment fails with the full list.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPPrefsExchange == "" {
			errs = append(errs, "AMQP preferences exchange cannot be empty when AMQP URL is provided")
		}
		if c.AMQPBackupQueue == "" {
			errs = append(errs, "AMQP backup queue cannot be empty when AMQP URL is provided")
		}
	}

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.PrefsCachePath == "" {
		errs = append(errs, "preferences cache path cannot be empty")
	}

	if c.BackupSpreadsheetID != "" {
		if c.BackupSheetName == "" {
			errs = append(errs, "backup sheet name cannot be empty when backup is enabled")
		}
		if c.BackupBatchSize < 1 || c.BackupBatchSize > 1000 {
			errs = append(errs, fmt.Sprintf("invalid backup batch size %d: must be between 1 and 1000", c.BackupBatchSize))
		}
		if c.BackupSweepInterval < time.Second {
			errs = append(errs, fmt.Sprintf("invalid backup sweep interval %v: must be at least 1 second", c.BackupSweepInterval))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
