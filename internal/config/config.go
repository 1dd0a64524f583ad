// internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is loaded from a YAML file and overridden by environment
// variables. All tuning that used to live in module-level settings
// (caps, delays, thresholds) sits in the Newsletter block so it can be
// passed explicitly into the pipeline and aggregator.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	App struct {
		BaseURL      string `yaml:"base_url"`
		MediaRoot    string `yaml:"media_root"`
		TemplatesDir string `yaml:"templates_dir"`
		SecretKey    string `yaml:"secret_key"`
		APIKey       string `yaml:"api_key"`
	} `yaml:"app"`

	Newsletter NewsletterConfig `yaml:"newsletter"`
}

// NewsletterConfig carries the send-policy tuning.
type NewsletterConfig struct {
	// Max webpath-news items per category when grouping.
	MaxItemsInCategory int `yaml:"max_items_in_category"`
	// Max webpath-news items when not grouping by category.
	MaxFreeItems int `yaml:"max_free_items"`
	// Seconds to sleep before every recipient. 0 disables.
	SendEmailDelay int `yaml:"send_email_delay"`
	// Insert the group delay after every Nth recipient. 0 disables.
	SendEmailGroup      int `yaml:"send_email_group"`
	SendEmailGroupDelay int `yaml:"send_email_group_delay"`
	// Above this many recipients a manual send is queued for the
	// next scheduler tick instead of running synchronously.
	MaxRecipientsForManualSending int `yaml:"max_recipients_for_manual_sending"`
	// Confirm-token lifetime in days.
	TokenExpirationDays int `yaml:"token_expiration_days"`
	// Template used when a message has none configured.
	DefaultTemplate string `yaml:"default_template"`
}

func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	config.overrideWithEnvVars()
	config.applyDefaults()

	return config, nil
}

func MustLoadConfig(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}

func (c *Config) overrideWithEnvVars() {
	if port := GetEnv("PORT", ""); port != "" {
		c.Server.Port = port
	}
	if host := GetEnv("HOST", ""); host != "" {
		c.Server.Host = host
	}

	if v := GetEnv("DB_HOST", ""); v != "" {
		c.Database.Host = v
	}
	if v := GetEnv("DB_PORT", ""); v != "" {
		c.Database.Port = v
	}
	if v := GetEnv("DB_USER", ""); v != "" {
		c.Database.User = v
	}
	if v := GetEnv("DB_PASSWORD", ""); v != "" {
		c.Database.Password = v
	}
	if v := GetEnv("DB_NAME", ""); v != "" {
		c.Database.Name = v
	}

	if v := GetEnv("SMTP_HOST", ""); v != "" {
		c.SMTP.Host = v
	}
	if v := GetEnv("SMTP_PORT", ""); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := GetEnv("SMTP_USERNAME", ""); v != "" {
		c.SMTP.Username = v
	}
	if v := GetEnv("SMTP_PASSWORD", ""); v != "" {
		c.SMTP.Password = v
	}
	if v := GetEnv("DEFAULT_FROM_EMAIL", ""); v != "" {
		c.SMTP.From = v
	}

	if v := GetEnv("BASE_URL", ""); v != "" {
		c.App.BaseURL = v
	}
	if v := GetEnv("MEDIA_ROOT", ""); v != "" {
		c.App.MediaRoot = v
	}
	if v := GetEnv("SECRET_KEY", ""); v != "" {
		c.App.SecretKey = v
	}
	if v := GetEnv("API_KEY", ""); v != "" {
		c.App.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.App.MediaRoot == "" {
		c.App.MediaRoot = "media"
	}
	if c.App.TemplatesDir == "" {
		c.App.TemplatesDir = "templates"
	}
	if c.Newsletter.MaxItemsInCategory == 0 {
		c.Newsletter.MaxItemsInCategory = 3
	}
	if c.Newsletter.MaxFreeItems == 0 {
		c.Newsletter.MaxFreeItems = 10
	}
	if c.Newsletter.MaxRecipientsForManualSending == 0 {
		c.Newsletter.MaxRecipientsForManualSending = 50
	}
	if c.Newsletter.TokenExpirationDays == 0 {
		c.Newsletter.TokenExpirationDays = 1
	}
	if c.Newsletter.DefaultTemplate == "" {
		c.Newsletter.DefaultTemplate = "default_newsletter.html"
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
