package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compliance-forge/docuflow/pkg/models"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docuflow.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFromFile(t *testing.T) {
	path := writeConfig(t, `
log_level            = "debug"
review_interval_days = 180

database {
  driver = "postgres"
  host   = "db.internal"
  port   = 5433
  user   = "docuflow"
  dbname = "docuflow"
}

workflow_type "REVIEW" {}
workflow_type "APPROVAL" {}

notifications {
  brokers = "kafka-1:9092,kafka-2:9092"
}

search {
  index_path = "/var/lib/docuflow/index.bleve"
}
`)

	cfg, err := FromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 180, cfg.ReviewIntervalDays)
	assert.Equal(t, 180*24*time.Hour, cfg.ReviewInterval())

	dbCfg := cfg.DatabaseConfig()
	assert.Equal(t, "postgres", dbCfg.Driver)
	assert.Equal(t, "db.internal", dbCfg.Host)
	assert.Equal(t, 5433, dbCfg.Port)

	registry := cfg.Registry()
	assert.True(t, registry.Enabled(models.WorkflowReview))
	assert.True(t, registry.Enabled(models.WorkflowApproval))
	assert.False(t, registry.Enabled(models.WorkflowUpVersion))

	pub := cfg.PublisherConfig()
	require.NotNil(t, pub)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, pub.Brokers)
	assert.Equal(t, "docuflow.notifications", pub.Topic, "topic defaults when unset")

	assert.Equal(t, "/var/lib/docuflow/index.bleve", cfg.SearchConfig().Path)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 365, cfg.ReviewIntervalDays)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ".docuflow/docuflow.db", cfg.Database.Path)

	// Every workflow type enabled out of the box.
	registry := cfg.Registry()
	for _, wt := range []models.WorkflowType{
		models.WorkflowReview,
		models.WorkflowApproval,
		models.WorkflowUpVersion,
		models.WorkflowObsolete,
	} {
		assert.Truef(t, registry.Enabled(wt), "workflow type %s", wt)
	}

	assert.Nil(t, cfg.PublisherConfig(), "no broker means no publisher")
	assert.Empty(t, cfg.SearchConfig().Path, "in-memory index by default")
}

func TestValidate(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		cfg := Default()
		cfg.LogLevel = "verbose"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad driver", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Driver = "mysql"
		assert.Error(t, cfg.Validate())
	})

	t.Run("postgres without dbname", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Driver = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown workflow type", func(t *testing.T) {
		cfg := Default()
		cfg.WorkflowTypes = []WorkflowTypeBlock{{Name: "ESCALATION"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("review interval floor", func(t *testing.T) {
		cfg := Default()
		cfg.ReviewIntervalDays = -3
		assert.Error(t, cfg.Validate())
	})
}

func TestFromFileRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `log_level = "shouting"`)
	_, err := FromFile(path)
	assert.Error(t, err)
}
