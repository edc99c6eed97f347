// Package config loads docuflow configuration from HCL. The workflow
// registry and all collaborator settings flow from here into
// constructors; nothing reads configuration through globals.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/compliance-forge/docuflow/internal/workflow"
	"github.com/compliance-forge/docuflow/pkg/database"
	"github.com/compliance-forge/docuflow/pkg/models"
	"github.com/compliance-forge/docuflow/pkg/notifications"
	"github.com/compliance-forge/docuflow/pkg/search"
)

// Config is the root configuration.
type Config struct {
	LogLevel           string `hcl:"log_level,optional"`
	ReviewIntervalDays int    `hcl:"review_interval_days,optional"`

	Database      *Database           `hcl:"database,block"`
	WorkflowTypes []WorkflowTypeBlock `hcl:"workflow_type,block"`
	Notifications *Notifications      `hcl:"notifications,block"`
	Search        *Search             `hcl:"search,block"`
}

// Database holds database connection settings.
type Database struct {
	Driver   string `hcl:"driver,optional"`
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
	SSLMode  string `hcl:"sslmode,optional"`
	Path     string `hcl:"path,optional"`
}

// WorkflowTypeBlock enables one workflow type, e.g.
//
//	workflow_type "REVIEW" {}
type WorkflowTypeBlock struct {
	Name string `hcl:"name,label"`
}

// Notifications holds Kafka publisher settings. When no brokers are
// configured, the no-op notifier is used.
type Notifications struct {
	Brokers string `hcl:"brokers,optional"`
	Topic   string `hcl:"topic,optional"`
}

// Search holds the embedded search index settings. An empty path keeps
// the index in memory.
type Search struct {
	IndexPath string `hcl:"index_path,optional"`
}

// FromFile loads, defaults, and validates configuration from an HCL
// file.
func FromFile(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the zero-config setup: local SQLite, every workflow
// type enabled, in-memory search, no broker.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ReviewIntervalDays == 0 {
		c.ReviewIntervalDays = 365
	}
	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = ".docuflow/docuflow.db"
	}
	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	}
	if len(c.WorkflowTypes) == 0 {
		c.WorkflowTypes = []WorkflowTypeBlock{
			{Name: string(models.WorkflowReview)},
			{Name: string(models.WorkflowApproval)},
			{Name: string(models.WorkflowUpVersion)},
			{Name: string(models.WorkflowObsolete)},
		}
	}
	if c.Notifications != nil && c.Notifications.Topic == "" {
		c.Notifications.Topic = "docuflow.notifications"
	}
}

// Validate checks configured values.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel,
			validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.ReviewIntervalDays, validation.Min(1)),
	); err != nil {
		return err
	}

	if err := validation.ValidateStruct(c.Database,
		validation.Field(&c.Database.Driver, validation.Required,
			validation.In("postgres", "sqlite")),
	); err != nil {
		return err
	}
	if c.Database.Driver == "postgres" && c.Database.DBName == "" {
		return fmt.Errorf("database dbname is required for postgres")
	}

	for _, wt := range c.WorkflowTypes {
		if !models.WorkflowType(wt.Name).IsValid() {
			return fmt.Errorf("unknown workflow type %q", wt.Name)
		}
	}
	return nil
}

// Registry builds the workflow-type registry from the enabled blocks.
func (c *Config) Registry() *workflow.Registry {
	types := make([]models.WorkflowType, 0, len(c.WorkflowTypes))
	for _, wt := range c.WorkflowTypes {
		types = append(types, models.WorkflowType(wt.Name))
	}
	return workflow.NewRegistry(types...)
}

// DatabaseConfig converts to the shared connection config.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   c.Database.Driver,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
		Path:     c.Database.Path,
	}
}

// PublisherConfig converts to the notification publisher config, or
// nil when no brokers are configured. The DOCUFLOW_KAFKA_BROKERS
// environment variable overrides the configured brokers, so container
// deployments can point at their broker without editing config files.
func (c *Config) PublisherConfig() *notifications.PublisherConfig {
	brokers := ""
	topic := "docuflow.notifications"
	if c.Notifications != nil {
		brokers = c.Notifications.Brokers
		if c.Notifications.Topic != "" {
			topic = c.Notifications.Topic
		}
	}
	if env := os.Getenv("DOCUFLOW_KAFKA_BROKERS"); env != "" {
		brokers = env
	}
	if brokers == "" {
		return nil
	}
	return &notifications.PublisherConfig{
		Brokers: strings.Split(brokers, ","),
		Topic:   topic,
	}
}

// SearchConfig converts to the search index config.
func (c *Config) SearchConfig() search.Config {
	if c.Search == nil {
		return search.Config{}
	}
	return search.Config{Path: c.Search.IndexPath}
}

// ReviewInterval returns the configured review interval as a duration.
func (c *Config) ReviewInterval() time.Duration {
	return time.Duration(c.ReviewIntervalDays) * 24 * time.Hour
}
