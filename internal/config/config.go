package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int           `yaml:"maxConns"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ConnectAttempts int           `yaml:"connectAttempts"`
	ConnectDelay    time.Duration `yaml:"connectDelay"`
	QueryTimeout    time.Duration `yaml:"queryTimeout"`
}

type Config struct {
	TasksPort       string         `yaml:"port"`
	LogLevel        string         `yaml:"logLevel"`
	AutoMigrate     bool           `yaml:"autoMigrate"`
	ShutdownTimeout time.Duration  `yaml:"shutdownTimeout"`
	DB              DatabaseConfig `yaml:"database"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		TasksPort:       "1488",
		LogLevel:        "info",
		AutoMigrate:     true,
		ShutdownTimeout: 10 * time.Second,
		DB: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            "5432",
			User:            "tasks_user",
			Password:        "tasks_pass",
			DBName:          "tasks_db",
			SSLMode:         "disable",
			MaxConns:        32,
			IdleTimeout:     300 * time.Second,
			ConnectAttempts: 10,
			ConnectDelay:    2 * time.Second,
			QueryTimeout:    5 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// at path, then environment variables. An empty path falls back to
// CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.TasksPort = getEnv("TASKS_PORT", c.TasksPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DB.Driver = getEnv("DB_DRIVER", c.DB.Driver)
	c.DB.Host = getEnv("DB_HOST", c.DB.Host)
	c.DB.Port = getEnv("DB_PORT", c.DB.Port)
	c.DB.User = getEnv("DB_USER", c.DB.User)
	c.DB.Password = getEnv("DB_PASSWORD", c.DB.Password)
	c.DB.DBName = getEnv("DB_NAME", c.DB.DBName)
	c.DB.SSLMode = getEnv("DB_SSLMODE", c.DB.SSLMode)

	var err error
	if c.AutoMigrate, err = getBoolEnv("AUTO_MIGRATE", c.AutoMigrate); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = getDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	if c.DB.MaxConns, err = getIntEnv("DB_MAX_CONNS", c.DB.MaxConns); err != nil {
		return err
	}
	if c.DB.IdleTimeout, err = getDurationEnv("DB_IDLE_TIMEOUT", c.DB.IdleTimeout); err != nil {
		return err
	}
	if c.DB.ConnectAttempts, err = getIntEnv("DB_CONNECT_ATTEMPTS", c.DB.ConnectAttempts); err != nil {
		return err
	}
	if c.DB.ConnectDelay, err = getDurationEnv("DB_CONNECT_DELAY", c.DB.ConnectDelay); err != nil {
		return err
	}
	if c.DB.QueryTimeout, err = getDurationEnv("DB_QUERY_TIMEOUT", c.DB.QueryTimeout); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		return errors.Errorf("unsupported database driver: %q", c.DB.Driver)
	}
	if c.DB.MaxConns < 1 {
		return errors.Errorf("DB_MAX_CONNS must be positive, got %d", c.DB.MaxConns)
	}
	if c.DB.ConnectAttempts < 1 {
		return errors.Errorf("DB_CONNECT_ATTEMPTS must be positive, got %d", c.DB.ConnectAttempts)
	}
	if c.DB.QueryTimeout <= 0 {
		return errors.Errorf("DB_QUERY_TIMEOUT must be positive, got %s", c.DB.QueryTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func getBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s", key)
	}
	return b, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

func (db *DatabaseConfig) DSN() string {
	switch db.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			db.Host, db.Port, db.User, db.Password, db.DBName, db.SSLMode)
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(db.Host, db.Port)
		mc.User = db.User
		mc.Passwd = db.Password
		mc.DBName = db.DBName
		// RowsAffected must count matched rows, not changed ones.
		mc.ClientFoundRows = true
		return mc.FormatDSN()
	default:
		return ""
	}
}
