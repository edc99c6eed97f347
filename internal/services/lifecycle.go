// Package services exposes the document lifecycle boundary consumed by
// the API layer, the CLI, and the scheduler. Every operation returns
// either a success value or a typed error from pkg/dcerr; persistence
// failures propagate unchanged and are never retried here.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/internal/graph"
	"github.com/compliance-forge/docuflow/internal/obsolescence"
	"github.com/compliance-forge/docuflow/internal/review"
	"github.com/compliance-forge/docuflow/internal/versions"
	"github.com/compliance-forge/docuflow/internal/workflow"
	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/docversion"
	"github.com/compliance-forge/docuflow/pkg/models"
	"github.com/compliance-forge/docuflow/pkg/notifications"
	"github.com/compliance-forge/docuflow/pkg/search"
)

// Lifecycle composes the five lifecycle components over one database.
type Lifecycle struct {
	db       *gorm.DB
	log      hclog.Logger
	registry *workflow.Registry

	machine   *workflow.StateMachine
	chain     *versions.Chain
	graph     *graph.Graph
	validator *obsolescence.Validator
	reviews   *review.Engine

	notifier notifications.Notifier
	index    *search.Index
}

// Options configures optional collaborators.
type Options struct {
	// Notifier publishes lifecycle events; nil selects the no-op
	// notifier.
	Notifier notifications.Notifier

	// Index receives metadata updates; nil disables search.
	Index *search.Index

	// ReviewInterval overrides how far ahead the next periodic review
	// is scheduled on promotion.
	ReviewInterval time.Duration
}

// New wires the lifecycle service.
func New(db *gorm.DB, registry *workflow.Registry, log hclog.Logger, opts Options) *Lifecycle {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.Noop{}
	}

	machine := workflow.New(db, registry, log)

	var chainOpts []versions.Option
	if opts.ReviewInterval > 0 {
		chainOpts = append(chainOpts, versions.WithReviewInterval(opts.ReviewInterval))
	}
	chain := versions.New(db, machine, registry, log, chainOpts...)
	g := graph.New(db, log)

	return &Lifecycle{
		db:        db,
		log:       log.Named("lifecycle"),
		registry:  registry,
		machine:   machine,
		chain:     chain,
		graph:     g,
		validator: obsolescence.New(db, chain, g, log),
		reviews:   review.New(db, registry, notifier, log),
		notifier:  notifier,
		index:     opts.Index,
	}
}

// CreateDocumentRequest describes a new first-version draft.
type CreateDocumentRequest struct {
	Title          string
	DocumentType   string
	DocumentSource string
	Author         string
	Reviewer       string
	Approver       string
}

// Validate checks the request before any mutation.
func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&r.DocumentType, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Author, validation.Required, validation.Length(1, 200)),
	)
}

// CreateDocument creates the first DRAFT version of a new family.
func (l *Lifecycle) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*models.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:             uuid.New(),
		FamilyID:       uuid.New(),
		VersionMajor:   docversion.Initial.Major,
		VersionMinor:   docversion.Initial.Minor,
		Title:          req.Title,
		Status:         models.StatusDraft,
		DocumentType:   req.DocumentType,
		DocumentSource: req.DocumentSource,
		Author:         req.Author,
		Reviewer:       req.Reviewer,
		Approver:       req.Approver,
	}
	if err := l.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	l.indexDocument(doc)
	l.log.Info("document created", "id", doc.ID, "family_id", doc.FamilyID, "title", doc.Title)
	return doc, nil
}

// StartReview submits a draft into its review workflow.
func (l *Lifecycle) StartReview(ctx context.Context, documentID uuid.UUID, actor string) (*models.Document, error) {
	return l.Transition(ctx, documentID, workflow.ActionSubmitForReview, actor)
}

// Approve records approval, moving the document to
// APPROVED_PENDING_EFFECTIVE.
func (l *Lifecycle) Approve(ctx context.Context, documentID uuid.UUID, actor string) (*models.Document, error) {
	return l.Transition(ctx, documentID, workflow.ActionApprove, actor)
}

// Reject sends a document under review or approval back to DRAFT.
func (l *Lifecycle) Reject(ctx context.Context, documentID uuid.UUID, actor string) (*models.Document, error) {
	return l.Transition(ctx, documentID, workflow.ActionReject, actor)
}

// Transition applies any single lifecycle action.
func (l *Lifecycle) Transition(ctx context.Context, documentID uuid.UUID, action workflow.Action, actor string) (*models.Document, error) {
	doc, err := l.machine.Apply(ctx, documentID, action, actor)
	if err != nil {
		return nil, err
	}
	l.indexDocument(doc)
	return doc, nil
}

// CreateVersion creates a new draft from an effective version. The
// review that recommended the bump, if any, is linked to the new
// draft.
func (l *Lifecycle) CreateVersion(ctx context.Context, sourceID uuid.UUID, kind docversion.BumpKind, reason, actor string) (*models.Document, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown bump kind %q", kind)
	}

	draft, err := l.chain.CreateVersion(ctx, sourceID, kind, reason, actor)
	if err != nil {
		return nil, err
	}
	if err := l.reviews.LinkNewVersion(ctx, sourceID, draft.ID); err != nil {
		l.log.Warn("failed to link review to new version", "error", err)
	}

	l.indexDocument(draft)
	return draft, nil
}

// PromoteToEffective makes an approved version effective, superseding
// the family's previous effective version in the same transaction.
func (l *Lifecycle) PromoteToEffective(ctx context.Context, documentID uuid.UUID, actor string) (*models.Document, error) {
	promoted, err := l.chain.PromoteToEffective(ctx, documentID, actor)
	if err != nil {
		return nil, err
	}

	l.reindexFamily(ctx, promoted.FamilyID)
	_ = l.notifier.Publish(ctx, &notifications.Message{
		Type:       notifications.EventDocumentEffective,
		DocumentID: promoted.ID.String(),
		FamilyID:   promoted.FamilyID.String(),
		Version:    promoted.Version().String(),
		ActorID:    actor,
		Context:    map[string]any{"title": promoted.Title},
	})
	return promoted, nil
}

// MarkObsolete advances a family member toward retirement: an
// EFFECTIVE document is scheduled for obsolescence (opening the
// OBSOLETE workflow), a scheduled one becomes OBSOLETE. Both steps
// re-run the family-wide safety check; a rejection names every
// blocking dependent and the exact version it references.
func (l *Lifecycle) MarkObsolete(ctx context.Context, documentID uuid.UUID, actor string) (*models.Document, error) {
	doc, err := l.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := l.validator.CanObsoleteFamily(ctx, doc.FamilyID); err != nil {
		var blocked *dcerr.BlockingDependentsError
		if errors.As(err, &blocked) {
			_ = l.notifier.Publish(ctx, &notifications.Message{
				Type:       notifications.EventBlockingDependents,
				DocumentID: doc.ID.String(),
				FamilyID:   doc.FamilyID.String(),
				ActorID:    actor,
				Context:    map[string]any{"blocking": len(blocked.Dependents)},
			})
		}
		return nil, err
	}

	var action workflow.Action
	switch doc.Status {
	case models.StatusEffective:
		action = workflow.ActionScheduleObsolescence
	case models.StatusScheduledForObsolescence:
		action = workflow.ActionMarkObsolete
	default:
		return nil, &dcerr.InvalidTransitionError{
			DocumentID: doc.ID.String(),
			From:       string(doc.Status),
			Action:     string(workflow.ActionMarkObsolete),
		}
	}

	updated, err := l.Transition(ctx, documentID, action, actor)
	if err != nil {
		return nil, err
	}

	if updated.Status == models.StatusObsolete {
		_ = l.notifier.Publish(ctx, &notifications.Message{
			Type:       notifications.EventDocumentObsoleted,
			DocumentID: updated.ID.String(),
			FamilyID:   updated.FamilyID.String(),
			Version:    updated.Version().String(),
			ActorID:    actor,
		})
	}
	return updated, nil
}

// AddDependency adds an active dependency edge between two documents.
func (l *Lifecycle) AddDependency(ctx context.Context, fromID, toID uuid.UUID, kind models.DependencyKind, critical bool, actor string) (*models.DependencyEdge, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid dependency kind %q", kind)
	}
	return l.graph.AddDependency(ctx, fromID, toID, kind, critical, actor)
}

// RemoveDependency soft-deletes the active edges between two documents.
func (l *Lifecycle) RemoveDependency(ctx context.Context, fromID, toID uuid.UUID) error {
	return l.graph.RemoveDependency(ctx, fromID, toID)
}

// DependencyChain returns the ordered transitive closure of active
// dependencies of a document.
func (l *Lifecycle) DependencyChain(ctx context.Context, documentID uuid.UUID) ([]models.Document, error) {
	return l.graph.DependencyChain(ctx, documentID)
}

// DetectCycles runs the system-wide cycle audit.
func (l *Lifecycle) DetectCycles(ctx context.Context) ([]graph.Cycle, error) {
	return l.graph.DetectCycles(ctx)
}

// CanObsoleteFamily reports whether a family is safe to retire.
func (l *Lifecycle) CanObsoleteFamily(ctx context.Context, familyID uuid.UUID) error {
	return l.validator.CanObsoleteFamily(ctx, familyID)
}

// FamilyDependencySummary enumerates the family's dependents, flagging
// those pinned to outdated versions.
func (l *Lifecycle) FamilyDependencySummary(ctx context.Context, familyID uuid.UUID) (*obsolescence.Summary, error) {
	return l.validator.FamilyDependencySummary(ctx, familyID)
}

// FamilyVersions lists every version in a family, newest first.
func (l *Lifecycle) FamilyVersions(ctx context.Context, familyID uuid.UUID) ([]models.Document, error) {
	return l.chain.FamilyVersions(ctx, familyID)
}

// LatestEffective returns the family's effective version, or nil.
func (l *Lifecycle) LatestEffective(ctx context.Context, familyID uuid.UUID) (*models.Document, error) {
	return l.chain.LatestEffective(ctx, familyID)
}

// Sweep runs one periodic review pass.
func (l *Lifecycle) Sweep(ctx context.Context, today time.Time) (*review.SweepResult, error) {
	return l.reviews.Sweep(ctx, today)
}

// CompleteReview records a review outcome. It never creates a version;
// when the result reports UpversionRequired the caller follows up with
// CreateVersion explicitly.
func (l *Lifecycle) CompleteReview(ctx context.Context, documentID uuid.UUID, outcome models.ReviewOutcome, comments string, nextReviewDate *time.Time, reviewer string) (*review.Result, error) {
	return l.reviews.CompleteReview(ctx, documentID, outcome, comments, nextReviewDate, reviewer)
}

// ReviewHistory returns the append-only review trail of a document,
// most recent first.
func (l *Lifecycle) ReviewHistory(ctx context.Context, documentID uuid.UUID) ([]models.ReviewRecord, error) {
	if _, err := l.getDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return models.GetReviewHistory(l.db.WithContext(ctx), documentID)
}

// SearchDocuments queries the metadata index and loads the matching
// documents, best match first. Returns nothing when search is
// disabled.
func (l *Lifecycle) SearchDocuments(ctx context.Context, query string, limit int) ([]models.Document, error) {
	if l.index == nil {
		return nil, nil
	}
	hits, err := l.index.Search(query, limit)
	if err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(hits))
	for _, hit := range hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		doc, err := models.GetDocument(l.db.WithContext(ctx), id)
		if err != nil {
			// Index can lag behind deletions of test fixtures; skip.
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (l *Lifecycle) getDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := models.GetDocument(l.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &dcerr.NotFoundError{Resource: "document", ID: id.String()}
		}
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return doc, nil
}

func (l *Lifecycle) indexDocument(doc *models.Document) {
	if l.index == nil || doc == nil {
		return
	}
	if err := l.index.IndexDocument(doc); err != nil {
		l.log.Warn("failed to index document", "id", doc.ID, "error", err)
	}
}

func (l *Lifecycle) reindexFamily(ctx context.Context, familyID uuid.UUID) {
	if l.index == nil {
		return
	}
	docs, err := models.GetFamilyVersions(l.db.WithContext(ctx), familyID)
	if err != nil {
		l.log.Warn("failed to reload family for indexing", "family_id", familyID, "error", err)
		return
	}
	for i := range docs {
		l.indexDocument(&docs[i])
	}
}
