package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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

func createDoc(t *testing.T, db *gorm.DB, title string) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:           uuid.New(),
		FamilyID:     uuid.New(),
		VersionMajor: 1,
		Title:        title,
		Status:       models.StatusEffective,
		DocumentType: "SOP",
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}

// createVersion adds another version to an existing family.
func createVersion(t *testing.T, db *gorm.DB, family *models.Document, major, minor int) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:           uuid.New(),
		FamilyID:     family.FamilyID,
		VersionMajor: major,
		VersionMinor: minor,
		Title:        family.Title,
		Status:       models.StatusDraft,
		DocumentType: family.DocumentType,
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}

func TestAddDependency(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")

	edge, err := g.AddDependency(ctx, a.ID, b.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)
	assert.Equal(t, a.FamilyID, edge.FromFamilyID)
	assert.Equal(t, b.FamilyID, edge.ToFamilyID)
	assert.True(t, edge.Active)
}

func TestDirectCycleRejected(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")

	_, err := g.AddDependency(ctx, a.ID, b.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)

	_, err = g.AddDependency(ctx, b.ID, a.ID, models.DependencyReferences, false, "qa-lead")
	var circular *dcerr.CircularDependencyError
	require.ErrorAs(t, err, &circular)
	assert.True(t, dcerr.IsConflict(err))

	// Cycle path starts and ends at the same family.
	require.GreaterOrEqual(t, len(circular.CyclePath), 3)
	assert.Equal(t, circular.CyclePath[0], circular.CyclePath[len(circular.CyclePath)-1])
	assert.Contains(t, circular.CyclePath, a.FamilyID.String())
	assert.Contains(t, circular.CyclePath, b.FamilyID.String())
}

func TestIndirectCycleRejected(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")
	c := createDoc(t, db, "SOP C")

	_, err := g.AddDependency(ctx, a.ID, b.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)
	_, err = g.AddDependency(ctx, b.ID, c.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)

	_, err = g.AddDependency(ctx, c.ID, a.ID, models.DependencyReferences, false, "qa-lead")
	var circular *dcerr.CircularDependencyError
	require.ErrorAs(t, err, &circular)
	assert.Len(t, circular.CyclePath, 4)
}

func TestConcurrentInsertsCannotCloseCycle(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")

	// Each edge is acyclic on its own; together they close a loop. Race
	// the two insertions against one graph.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]*models.Document{{a, b}, {b, a}} {
		wg.Add(1)
		go func(i int, from, to *models.Document) {
			defer wg.Done()
			_, errs[i] = g.AddDependency(ctx, from.ID, to.ID, models.DependencyReferences, false, "qa-lead")
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var circular *dcerr.CircularDependencyError
		require.ErrorAs(t, err, &circular)
		rejected++
	}
	assert.Equal(t, 1, succeeded, "exactly one insertion wins")
	assert.Equal(t, 1, rejected, "the loser sees the winner's edge")

	cycles, err := g.DetectCycles(ctx)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestSelfDependencyRejected(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()
	a := createDoc(t, db, "SOP A")

	t.Run("same document", func(t *testing.T) {
		_, err := g.AddDependency(ctx, a.ID, a.ID, models.DependencyReferences, false, "qa-lead")
		var self *dcerr.SelfDependencyError
		require.ErrorAs(t, err, &self)
		assert.True(t, dcerr.IsValidation(err))
	})

	t.Run("different versions of one family", func(t *testing.T) {
		v2 := createVersion(t, db, a, 2, 0)
		_, err := g.AddDependency(ctx, a.ID, v2.ID, models.DependencyReferences, false, "qa-lead")
		var self *dcerr.SelfDependencyError
		require.ErrorAs(t, err, &self)
	})
}

func TestCycleCheckSpansVersions(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	a2 := createVersion(t, db, a, 2, 0)
	b := createDoc(t, db, "SOP B")

	// a v1 -> b, then b -> a v2 closes a family-level cycle even though
	// neither document-level edge repeats.
	_, err := g.AddDependency(ctx, a.ID, b.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)

	_, err = g.AddDependency(ctx, b.ID, a2.ID, models.DependencyReferences, false, "qa-lead")
	var circular *dcerr.CircularDependencyError
	assert.ErrorAs(t, err, &circular)
}

func TestRemoveDependencyReopensPath(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")

	_, err := g.AddDependency(ctx, a.ID, b.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)
	require.NoError(t, g.RemoveDependency(ctx, a.ID, b.ID))

	// With the edge deactivated the reverse direction is legal again.
	_, err = g.AddDependency(ctx, b.ID, a.ID, models.DependencyReferences, false, "qa-lead")
	assert.NoError(t, err)
}

func TestRemoveDependencyMissingEdge(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")

	err := g.RemoveDependency(context.Background(), a.ID, b.ID)
	assert.True(t, dcerr.IsNotFound(err))
}

func TestDependencyChain(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")
	c := createDoc(t, db, "Policy C")
	d := createDoc(t, db, "Form D")

	// a -> b -> d and a -> c -> d: diamond, d reachable twice.
	for _, pair := range [][2]*models.Document{{a, b}, {a, c}, {b, d}, {c, d}} {
		_, err := g.AddDependency(ctx, pair[0].ID, pair[1].ID, models.DependencyReferences, false, "qa-lead")
		require.NoError(t, err)
	}

	chain, err := g.DependencyChain(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3, "each document appears once")

	ids := make([]uuid.UUID, len(chain))
	for i, doc := range chain {
		ids[i] = doc.ID
		assert.NotEqual(t, a.ID, doc.ID, "chain never contains the start")
	}
	assert.ElementsMatch(t, []uuid.UUID{b.ID, c.ID, d.ID}, ids)
	// Breadth-first: direct dependencies precede transitive ones.
	assert.Equal(t, d.ID, ids[2])
}

func TestDependencyChainEmpty(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	a := createDoc(t, db, "SOP A")

	chain, err := g.DependencyChain(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestDetectCyclesCleanGraph(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")
	_, err := g.AddDependency(ctx, a.ID, b.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)

	cycles, err := g.DetectCycles(ctx)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestDetectCyclesFindsManuallyInsertedCycle(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	ctx := context.Background()

	a := createDoc(t, db, "SOP A")
	b := createDoc(t, db, "SOP B")

	// Bypass AddDependency to simulate corrupt data.
	for _, pair := range [][2]*models.Document{{a, b}, {b, a}} {
		edge := models.DependencyEdge{
			FromDocumentID: pair[0].ID,
			FromFamilyID:   pair[0].FamilyID,
			ToDocumentID:   pair[1].ID,
			ToFamilyID:     pair[1].FamilyID,
			Kind:           models.DependencyReferences,
			Active:         true,
		}
		require.NoError(t, db.Create(&edge).Error)
	}

	cycles, err := g.DetectCycles(ctx)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	cycle := cycles[0]
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
}

func TestAddDependencyUnknownDocument(t *testing.T) {
	db := newTestDB(t)
	g := New(db, nil)
	a := createDoc(t, db, "SOP A")

	_, err := g.AddDependency(context.Background(), a.ID, uuid.New(), models.DependencyReferences, false, "qa-lead")
	assert.True(t, dcerr.IsNotFound(err))
}
