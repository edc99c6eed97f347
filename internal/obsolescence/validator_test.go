package obsolescence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/compliance-forge/docuflow/internal/graph"
	"github.com/compliance-forge/docuflow/internal/versions"
	"github.com/compliance-forge/docuflow/internal/workflow"
	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))
	return db
}

func newTestValidator(t *testing.T, db *gorm.DB) (*Validator, *graph.Graph) {
	t.Helper()
	registry := workflow.DefaultRegistry()
	machine := workflow.New(db, registry, nil)
	chain := versions.New(db, machine, registry, nil)
	g := graph.New(db, nil)
	return New(db, chain, g, nil), g
}

func createDoc(t *testing.T, db *gorm.DB, title string, status models.DocumentStatus, major, minor int) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:           uuid.New(),
		FamilyID:     uuid.New(),
		VersionMajor: major,
		VersionMinor: minor,
		Title:        title,
		Status:       status,
		DocumentType: "SOP",
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}

func addVersion(t *testing.T, db *gorm.DB, family *models.Document, status models.DocumentStatus, major, minor int) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:           uuid.New(),
		FamilyID:     family.FamilyID,
		VersionMajor: major,
		VersionMinor: minor,
		Title:        family.Title,
		Status:       status,
		DocumentType: family.DocumentType,
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}

func TestCanObsoleteFamilyWithoutDependents(t *testing.T) {
	db := newTestDB(t)
	v, _ := newTestValidator(t, db)
	doc := createDoc(t, db, "Orphan Policy", models.StatusEffective, 1, 0)

	assert.NoError(t, v.CanObsoleteFamily(context.Background(), doc.FamilyID))
}

func TestCanObsoleteFamilyBlockedByDependent(t *testing.T) {
	db := newTestDB(t)
	v, g := newTestValidator(t, db)
	ctx := context.Background()

	policy := createDoc(t, db, "Quality Policy", models.StatusEffective, 1, 0)
	sop := createDoc(t, db, "Calibration SOP", models.StatusEffective, 1, 0)
	_, err := g.AddDependency(ctx, sop.ID, policy.ID, models.DependencyImplements, true, "qa-lead")
	require.NoError(t, err)

	err = v.CanObsoleteFamily(ctx, policy.FamilyID)
	var blocked *dcerr.BlockingDependentsError
	require.ErrorAs(t, err, &blocked)
	assert.True(t, dcerr.IsBlocked(err))

	require.Len(t, blocked.Dependents, 1)
	dep := blocked.Dependents[0]
	assert.Equal(t, sop.ID.String(), dep.DependentID)
	assert.Equal(t, "Calibration SOP", dep.DependentTitle)
	assert.Equal(t, "01.00", dep.ThroughVersion)
	assert.Equal(t, policy.ID.String(), dep.ThroughID)
}

// A dependent pinned to a superseded version still blocks the family:
// retiring the family would orphan the explicit reference.
func TestSupersededVersionStillBlocks(t *testing.T) {
	db := newTestDB(t)
	v, g := newTestValidator(t, db)
	ctx := context.Background()

	policyV1 := createDoc(t, db, "Quality Policy", models.StatusSuperseded, 1, 0)
	addVersion(t, db, policyV1, models.StatusEffective, 2, 0)
	sop := createDoc(t, db, "Calibration SOP", models.StatusEffective, 1, 0)

	_, err := g.AddDependency(ctx, sop.ID, policyV1.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)

	err = v.CanObsoleteFamily(ctx, policyV1.FamilyID)
	var blocked *dcerr.BlockingDependentsError
	require.ErrorAs(t, err, &blocked)
	require.Len(t, blocked.Dependents, 1)
	assert.Equal(t, "01.00", blocked.Dependents[0].ThroughVersion)
}

func TestInactiveEdgeDoesNotBlock(t *testing.T) {
	db := newTestDB(t)
	v, g := newTestValidator(t, db)
	ctx := context.Background()

	policy := createDoc(t, db, "Quality Policy", models.StatusEffective, 1, 0)
	sop := createDoc(t, db, "Calibration SOP", models.StatusEffective, 1, 0)

	_, err := g.AddDependency(ctx, sop.ID, policy.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)
	require.NoError(t, g.RemoveDependency(ctx, sop.ID, policy.ID))

	assert.NoError(t, v.CanObsoleteFamily(ctx, policy.FamilyID))
}

func TestFamilyDependencySummaryFlagsOutdated(t *testing.T) {
	db := newTestDB(t)
	v, g := newTestValidator(t, db)
	ctx := context.Background()

	policyV1 := createDoc(t, db, "Quality Policy", models.StatusSuperseded, 1, 0)
	policyV2 := addVersion(t, db, policyV1, models.StatusEffective, 2, 0)

	oldConsumer := createDoc(t, db, "Old SOP", models.StatusEffective, 1, 0)
	newConsumer := createDoc(t, db, "New SOP", models.StatusEffective, 1, 0)

	_, err := g.AddDependency(ctx, oldConsumer.ID, policyV1.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)
	_, err = g.AddDependency(ctx, newConsumer.ID, policyV2.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)

	summary, err := v.FamilyDependencySummary(ctx, policyV1.FamilyID)
	require.NoError(t, err)
	require.NotNil(t, summary.Effective)
	assert.Equal(t, policyV2.ID, summary.Effective.ID)
	assert.Len(t, summary.Versions, 2)
	require.Len(t, summary.Dependents, 2)

	byDependent := map[uuid.UUID]Dependent{}
	for _, d := range summary.Dependents {
		byDependent[d.Dependent.ID] = d
	}
	assert.True(t, byDependent[oldConsumer.ID].Outdated, "reference to v1 while v2 is effective")
	assert.False(t, byDependent[newConsumer.ID].Outdated)
}

func TestFamilyDependencySummaryUnknownFamily(t *testing.T) {
	db := newTestDB(t)
	v, _ := newTestValidator(t, db)

	_, err := v.FamilyDependencySummary(context.Background(), uuid.New())
	assert.True(t, dcerr.IsNotFound(err))
}
