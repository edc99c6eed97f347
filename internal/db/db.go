// Package db wires the shared database connection to the docuflow
// schema.
package db

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/pkg/database"
	"github.com/compliance-forge/docuflow/pkg/models"
)

// New returns a connected, automigrated database.
func New(cfg database.Config, log hclog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(models.ModelsToAutoMigrate()...); err != nil {
		return nil, fmt.Errorf("automigrating schema: %w", err)
	}
	return db, nil
}
