// Package config loads service configuration from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"receipt-sentinel/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mail      MailConfig      `mapstructure:"mail"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Learning  LearningConfig  `mapstructure:"learning"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// BaseURL is the public address of this service, used to build the
	// action links embedded in forwarded emails.
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// MailConfig holds the monitored accounts and forwarding settings.
type MailConfig struct {
	// Accounts are the mailboxes polled each cycle.
	Accounts []model.Account `mapstructure:"accounts"`
	// ForwardTarget receives every accepted receipt. A cycle aborts if it
	// is missing.
	ForwardTarget string `mapstructure:"forward_target"`
	// CommandSender may send STOP/MORE/SETTINGS command emails; normally
	// the same person as ForwardTarget.
	CommandSender string `mapstructure:"command_sender"`
	// SelfAddresses are treated as replies/forwards by the detector, in
	// addition to the monitored accounts and the forward target.
	SelfAddresses []string `mapstructure:"self_addresses"`

	// Gmail API credentials used by the Gmail fetcher and the forwarder.
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	SenderEmail  string `mapstructure:"sender_email"`
	UseIMAP      bool   `mapstructure:"use_imap"`
}

// SchedulerConfig holds the polling and retention schedule.
type SchedulerConfig struct {
	IntervalMinutes      int `mapstructure:"interval_minutes"`
	LookbackDays         int `mapstructure:"lookback_days"`
	BatchLimit           int `mapstructure:"batch_limit"`
	RetentionHours       int `mapstructure:"retention_hours"`
	CleanupIntervalHours int `mapstructure:"cleanup_interval_hours"`
}

// LearningConfig holds the shadow-rule promotion thresholds.
type LearningConfig struct {
	AutoPromoteConfidence float64 `mapstructure:"auto_promote_confidence"`
	AutoPromoteMatchCount int     `mapstructure:"auto_promote_match_count"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.base_url", "http://localhost:8080")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("mail.use_imap", true)

	viper.SetDefault("scheduler.interval_minutes", 5)
	viper.SetDefault("scheduler.lookback_days", 1)
	viper.SetDefault("scheduler.batch_limit", 50)
	viper.SetDefault("scheduler.retention_hours", 24)
	viper.SetDefault("scheduler.cleanup_interval_hours", 1)

	viper.SetDefault("learning.auto_promote_confidence", 0.9)
	viper.SetDefault("learning.auto_promote_match_count", 3)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.base_url", "BASE_URL")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("mail.forward_target", "FORWARD_TARGET")
	viper.BindEnv("mail.command_sender", "COMMAND_SENDER")
	viper.BindEnv("mail.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("mail.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("mail.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mail.sender_email", "GMAIL_SENDER_EMAIL")
	viper.BindEnv("mail.use_imap", "MAIL_USE_IMAP")

	viper.BindEnv("scheduler.interval_minutes", "POLL_INTERVAL_MINUTES")
	viper.BindEnv("scheduler.lookback_days", "LOOKBACK_DAYS")
	viper.BindEnv("scheduler.batch_limit", "BATCH_LIMIT")
	viper.BindEnv("scheduler.retention_hours", "RETENTION_HOURS")
	viper.BindEnv("scheduler.cleanup_interval_hours", "CLEANUP_INTERVAL_HOURS")

	viper.BindEnv("learning.auto_promote_confidence", "AUTO_PROMOTE_CONFIDENCE_THRESHOLD")
	viper.BindEnv("learning.auto_promote_match_count", "AUTO_PROMOTE_MATCH_COUNT_THRESHOLD")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// SelfAddressList returns every address the detector should treat as our
// own: the configured self addresses, the monitored accounts, and the
// forwarding target.
func (c *MailConfig) SelfAddressList() []string {
	addrs := make([]string, 0, len(c.SelfAddresses)+len(c.Accounts)+1)
	addrs = append(addrs, c.SelfAddresses...)
	for _, acc := range c.Accounts {
		addrs = append(addrs, acc.Email)
	}
	if c.ForwardTarget != "" {
		addrs = append(addrs, c.ForwardTarget)
	}
	return addrs
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}
	if len(c.Mail.Accounts) == 0 {
		return fmt.Errorf("at least one mail account is required")
	}
	if !c.Mail.UseIMAP {
		if c.Mail.ClientID == "" || c.Mail.ClientSecret == "" || c.Mail.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when not using IMAP")
		}
	}
	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}
	if c.Scheduler.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be greater than 0")
	}
	if c.Learning.AutoPromoteConfidence <= 0 || c.Learning.AutoPromoteConfidence > 1 {
		return fmt.Errorf("auto promote confidence must be in (0, 1]")
	}
	if c.Learning.AutoPromoteMatchCount <= 0 {
		return fmt.Errorf("auto promote match count must be greater than 0")
	}
	return nil
}
