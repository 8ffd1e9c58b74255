package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Engine worker scheduling. TickCronSpec takes precedence over
	// TickInterval when set.
	TickInterval time.Duration
	TickCronSpec string

	// Engine trigger throttling: the per-request sweep is skipped for an
	// owner whose engine ran less than MinRunInterval ago.
	MinRunInterval time.Duration

	// Notification rule windows
	DebtLookaheadDays     int
	GoalRiskLookaheadDays int
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kopilka.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kopilka"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "engine_events"),

		TickInterval:   getEnvDuration("TICK_INTERVAL", 5*time.Minute),
		TickCronSpec:   getEnv("TICK_CRON", ""),
		MinRunInterval: getEnvDuration("ENGINE_MIN_RUN_INTERVAL", 30*time.Second),

		DebtLookaheadDays:     getEnvInt("DEBT_LOOKAHEAD_DAYS", 3),
		GoalRiskLookaheadDays: getEnvInt("GOAL_RISK_LOOKAHEAD_DAYS", 14),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite database path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate scheduling
	if c.TickCronSpec != "" {
		if _, err := cron.ParseStandard(c.TickCronSpec); err != nil {
			errors = append(errors, fmt.Sprintf("invalid tick cron spec '%s': %v", c.TickCronSpec, err))
		}
	}
	if c.TickInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid tick interval %v: must be at least 1 second", c.TickInterval))
	} else if c.TickInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid tick interval %v: must be at most 24 hours", c.TickInterval))
	}

	if c.MinRunInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid engine min run interval %v: must not be negative", c.MinRunInterval))
	}

	// Validate notification windows
	if c.DebtLookaheadDays < 0 || c.DebtLookaheadDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid debt lookahead %d: must be between 0 and 365 days", c.DebtLookaheadDays))
	}
	if c.GoalRiskLookaheadDays < 0 || c.GoalRiskLookaheadDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid goal risk lookahead %d: must be between 0 and 365 days", c.GoalRiskLookaheadDays))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
