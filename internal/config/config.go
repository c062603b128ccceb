package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Ledger   LedgerConfig   `json:"ledger"`
	Market   MarketConfig   `json:"market"`
	Fees     FeesConfig     `json:"fees"`
	Stats    StatsConfig    `json:"stats"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents the audit-trail database. Leaving the host
// empty runs the service with the in-memory recorder instead.
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LedgerConfig fixes the token ledger instance. Addresses are 0x-hex.
type LedgerConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	UnitID      uint64 `json:"unit_id"`
	BackingUnit uint64 `json:"backing_unit"`
	MinPrice    uint64 `json:"min_price"`
}

// MarketConfig fixes the escrow engine identity.
type MarketConfig struct {
	EngineID string `json:"engine_id"`
}

// FeesConfig sets the initial fee policy. Rate is parts per thousand.
type FeesConfig struct {
	RatePerMille uint64   `json:"rate_per_mille"`
	Recipient    string   `json:"recipient"`
	Owner        string   `json:"owner"`
	Operators    []string `json:"operators"`
}

// StatsConfig controls the periodic market snapshot.
type StatsConfig struct {
	Schedule string `json:"schedule"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "derivative_market",
			SSLMode: "disable",
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Ledger: LedgerConfig{
			Name:        "Carbon Derivative Credit",
			Symbol:      "CDC",
			UnitID:      1,
			BackingUnit: 1,
			MinPrice:    10000,
		},
		Fees: FeesConfig{
			RatePerMille: 10,
		},
		Stats: StatsConfig{
			Schedule: "*/5 * * * *",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if id := os.Getenv("LEDGER_ID"); id != "" {
		config.Ledger.ID = id
	}
	if engine := os.Getenv("MARKET_ENGINE_ID"); engine != "" {
		config.Market.EngineID = engine
	}
	if recipient := os.Getenv("FEE_RECIPIENT"); recipient != "" {
		config.Fees.Recipient = recipient
	}
	if owner := os.Getenv("REGISTRY_OWNER"); owner != "" {
		config.Fees.Owner = owner
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
