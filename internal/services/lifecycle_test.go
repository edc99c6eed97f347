package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/compliance-forge/docuflow/internal/workflow"
	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/docversion"
	"github.com/compliance-forge/docuflow/pkg/models"
	"github.com/compliance-forge/docuflow/pkg/notifications"
	"github.com/compliance-forge/docuflow/pkg/search"
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

type capturingNotifier struct {
	mu       sync.Mutex
	messages []*notifications.Message
}

func (c *capturingNotifier) Publish(_ context.Context, msg *notifications.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *capturingNotifier) byType(eventType notifications.EventType) []*notifications.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*notifications.Message
	for _, m := range c.messages {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

func newTestLifecycle(t *testing.T) (*Lifecycle, *gorm.DB, *capturingNotifier) {
	t.Helper()
	db := newTestDB(t)
	notifier := &capturingNotifier{}
	idx, err := search.NewIndex(search.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	svc := New(db, workflow.DefaultRegistry(), nil, Options{
		Notifier: notifier,
		Index:    idx,
	})
	return svc, db, notifier
}

func newDraft(t *testing.T, svc *Lifecycle) *models.Document {
	t.Helper()
	doc, err := svc.CreateDocument(context.Background(), CreateDocumentRequest{
		Title:        "Equipment Calibration SOP",
		DocumentType: "SOP",
		Author:       "author-1",
		Reviewer:     "reviewer-1",
		Approver:     "approver-1",
	})
	require.NoError(t, err)
	return doc
}

// driveToEffective walks a draft through the full review and approval
// path and promotes it.
func driveToEffective(t *testing.T, svc *Lifecycle, doc *models.Document) *models.Document {
	t.Helper()
	ctx := context.Background()

	for _, action := range []workflow.Action{
		workflow.ActionSubmitForReview,
		workflow.ActionStartReview,
		workflow.ActionCompleteReview,
		workflow.ActionSubmitForApproval,
		workflow.ActionStartApproval,
		workflow.ActionApprove,
	} {
		var err error
		doc, err = svc.Transition(ctx, doc.ID, action, "qa-lead")
		require.NoError(t, err)
	}

	promoted, err := svc.PromoteToEffective(ctx, doc.ID, "qa-lead")
	require.NoError(t, err)
	require.Equal(t, models.StatusEffective, promoted.Status)
	return promoted
}

func TestCreateDocument(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	doc := newDraft(t, svc)

	assert.Equal(t, models.StatusDraft, doc.Status)
	assert.Equal(t, "01.00", doc.Version().String())
	assert.NotEqual(t, uuid.Nil, doc.FamilyID)
}

func TestCreateDocumentValidation(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)

	_, err := svc.CreateDocument(context.Background(), CreateDocumentRequest{
		DocumentType: "SOP",
		Author:       "author-1",
	})
	assert.Error(t, err, "missing title is rejected")
}

func TestFullLifecycleToEffective(t *testing.T) {
	svc, _, notifier := newTestLifecycle(t)
	doc := newDraft(t, svc)

	promoted := driveToEffective(t, svc, doc)
	assert.NotNil(t, promoted.NextReviewDate)
	assert.NotNil(t, promoted.EffectiveDate)

	published := notifier.byType(notifications.EventDocumentEffective)
	require.Len(t, published, 1)
	assert.Equal(t, promoted.ID.String(), published[0].DocumentID)
}

func TestRejectReturnsToDraft(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	ctx := context.Background()
	doc := newDraft(t, svc)

	_, err := svc.StartReview(ctx, doc.ID, "author-1")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, doc.ID, workflow.ActionStartReview, "reviewer-1")
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, doc.ID, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, rejected.Status)

	// Rejected draft can be resubmitted.
	resubmitted, err := svc.StartReview(ctx, doc.ID, "author-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingReview, resubmitted.Status)
}

func TestVersioningSupersedesOldEffective(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	v1 := driveToEffective(t, svc, newDraft(t, svc))

	v2, err := svc.CreateVersion(ctx, v1.ID, docversion.BumpMajor, "annual rewrite", "editor-1")
	require.NoError(t, err)
	assert.Equal(t, "02.00", v2.Version().String())

	promoted := driveToEffective(t, svc, v2)

	old, err := svc.LatestEffective(ctx, v1.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, promoted.ID, old.ID)

	versions, err := svc.FamilyVersions(ctx, v1.FamilyID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, models.StatusEffective, versions[0].Status)
	assert.Equal(t, models.StatusSuperseded, versions[1].Status)
}

func TestReviewDrivenUpversionLinksRecord(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	doc := driveToEffective(t, svc, newDraft(t, svc))

	// Pull the review date into the past and run the sweep.
	past := time.Now().Add(-time.Hour)
	svcDB := svc.db
	require.NoError(t, svcDB.Model(&models.Document{}).
		Where("id = ?", doc.ID).
		Update("next_review_date", past).Error)

	result, err := svc.Sweep(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Opened, 1)

	reviewResult, err := svc.CompleteReview(ctx, doc.ID, models.OutcomeMinorUpversion, "needs update", nil, "reviewer-1")
	require.NoError(t, err)
	require.True(t, reviewResult.UpversionRequired)

	draft, err := svc.CreateVersion(ctx, doc.ID, reviewResult.RecommendedBump, "periodic review", "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, "01.01", draft.Version().String())

	history, err := svc.ReviewHistory(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].LinkedNewVersionID)
	assert.Equal(t, draft.ID, *history[0].LinkedNewVersionID)
}

func TestMarkObsoleteTwoStep(t *testing.T) {
	svc, _, notifier := newTestLifecycle(t)
	ctx := context.Background()

	doc := driveToEffective(t, svc, newDraft(t, svc))

	scheduled, err := svc.MarkObsolete(ctx, doc.ID, "qa-lead")
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduledForObsolescence, scheduled.Status)

	obsolete, err := svc.MarkObsolete(ctx, doc.ID, "qa-lead")
	require.NoError(t, err)
	assert.Equal(t, models.StatusObsolete, obsolete.Status)

	require.Len(t, notifier.byType(notifications.EventDocumentObsoleted), 1)
}

func TestMarkObsoleteBlockedByDependent(t *testing.T) {
	svc, _, notifier := newTestLifecycle(t)
	ctx := context.Background()

	policy := driveToEffective(t, svc, newDraft(t, svc))
	sop := driveToEffective(t, svc, newDraft(t, svc))

	_, err := svc.AddDependency(ctx, sop.ID, policy.ID, models.DependencyImplements, true, "qa-lead")
	require.NoError(t, err)

	_, err = svc.MarkObsolete(ctx, policy.ID, "qa-lead")
	var blocked *dcerr.BlockingDependentsError
	require.ErrorAs(t, err, &blocked)
	require.Len(t, blocked.Dependents, 1)
	assert.Equal(t, sop.ID.String(), blocked.Dependents[0].DependentID)

	require.Len(t, notifier.byType(notifications.EventBlockingDependents), 1)

	// Removing the dependency unblocks retirement.
	require.NoError(t, svc.RemoveDependency(ctx, sop.ID, policy.ID))
	scheduled, err := svc.MarkObsolete(ctx, policy.ID, "qa-lead")
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduledForObsolescence, scheduled.Status)
}

func TestMarkObsoleteInvalidFromDraft(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	doc := newDraft(t, svc)

	_, err := svc.MarkObsolete(context.Background(), doc.ID, "qa-lead")
	var invalid *dcerr.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestDependencyChainThroughService(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	a := driveToEffective(t, svc, newDraft(t, svc))
	b := driveToEffective(t, svc, newDraft(t, svc))
	c := driveToEffective(t, svc, newDraft(t, svc))

	_, err := svc.AddDependency(ctx, a.ID, b.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, b.ID, c.ID, models.DependencyReferences, false, "qa-lead")
	require.NoError(t, err)

	chain, err := svc.DependencyChain(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, b.ID, chain[0].ID)
	assert.Equal(t, c.ID, chain[1].ID)

	cycles, err := svc.DetectCycles(ctx)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestSearchDocuments(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	doc := newDraft(t, svc)
	other, err := svc.CreateDocument(ctx, CreateDocumentRequest{
		Title:        "Supplier Audit Checklist",
		DocumentType: "FORM",
		Author:       "author-2",
	})
	require.NoError(t, err)

	hits, err := svc.SearchDocuments(ctx, "calibration", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, doc.ID, hits[0].ID)

	hits, err = svc.SearchDocuments(ctx, "docType:FORM", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, other.ID, hits[0].ID)
}

func TestSearchReflectsStatusChanges(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)

	driveToEffective(t, svc, newDraft(t, svc))

	hits, err := svc.SearchDocuments(context.Background(), "status:EFFECTIVE", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, models.StatusEffective, hits[0].Status)
}
