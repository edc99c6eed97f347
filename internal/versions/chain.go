// Package versions owns version numbering and family grouping: new
// drafts from effective versions, supersession on promotion, and
// family queries. Family membership is an explicit FamilyID assigned
// once at creation or versioning time, never derived from formatted
// document numbers.
package versions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/internal/workflow"
	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/docversion"
	"github.com/compliance-forge/docuflow/pkg/models"
)

// DefaultReviewInterval is how far the next periodic review is
// scheduled after a version becomes effective, unless configured
// otherwise.
const DefaultReviewInterval = 365 * 24 * time.Hour

// Chain manages the version chain of document families.
type Chain struct {
	db             *gorm.DB
	machine        *workflow.StateMachine
	registry       *workflow.Registry
	log            hclog.Logger
	reviewInterval time.Duration
}

// Option configures a Chain.
type Option func(*Chain)

// WithReviewInterval overrides the review interval applied when a
// version is promoted to effective.
func WithReviewInterval(d time.Duration) Option {
	return func(c *Chain) { c.reviewInterval = d }
}

// New creates a version chain.
func New(db *gorm.DB, machine *workflow.StateMachine, registry *workflow.Registry, log hclog.Logger, opts ...Option) *Chain {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	c := &Chain{
		db:             db,
		machine:        machine,
		registry:       registry,
		log:            log.Named("versions"),
		reviewInterval: DefaultReviewInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateVersion produces a new DRAFT in the source document's family.
// The source must be EFFECTIVE. The new version gets the family's next
// version number for the requested bump kind, inherits the source's
// document type and source, and receives a copy of the source's active
// outbound dependency edges re-pointed at the new version's id.
//
// The UP_VERSION workflow type must be registered; a completed
// UP_VERSION workflow instance is recorded on the source for audit.
func (c *Chain) CreateVersion(ctx context.Context, sourceID uuid.UUID, kind docversion.BumpKind, reason, actor string) (*models.Document, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown bump kind %q", kind)
	}
	if !c.registry.Enabled(models.WorkflowUpVersion) {
		return nil, &dcerr.MissingWorkflowTypeError{WorkflowType: string(models.WorkflowUpVersion)}
	}

	var draft *models.Document
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := models.GetDocument(tx, sourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &dcerr.NotFoundError{Resource: "document", ID: sourceID.String()}
			}
			return fmt.Errorf("loading source document: %w", err)
		}
		if source.Status != models.StatusEffective {
			return &dcerr.NonEffectiveVersioningError{
				DocumentID: source.ID.String(),
				Status:     string(source.Status),
			}
		}

		// Bump from the family's highest number, not the source's, so
		// version numbers stay strictly increasing even when an earlier
		// draft already sits above the effective version.
		highest, err := c.highestVersion(tx, source.FamilyID)
		if err != nil {
			return err
		}
		next, err := highest.Bump(kind)
		if err != nil {
			return err
		}

		draft = &models.Document{
			ID:             uuid.New(),
			FamilyID:       source.FamilyID,
			VersionMajor:   next.Major,
			VersionMinor:   next.Minor,
			Title:          source.Title,
			Status:         models.StatusDraft,
			DocumentType:   source.DocumentType,
			DocumentSource: source.DocumentSource,
			Author:         actor,
		}
		if err := tx.Create(draft).Error; err != nil {
			return fmt.Errorf("creating draft version: %w", err)
		}

		edges, err := models.GetActiveEdgesFrom(tx, source.ID)
		if err != nil {
			return fmt.Errorf("loading source edges: %w", err)
		}
		for _, e := range edges {
			copied := models.DependencyEdge{
				FromDocumentID: draft.ID,
				FromFamilyID:   draft.FamilyID,
				ToDocumentID:   e.ToDocumentID,
				ToFamilyID:     e.ToFamilyID,
				Kind:           e.Kind,
				Critical:       e.Critical,
				Active:         true,
				CreatedBy:      actor,
			}
			if err := tx.Create(&copied).Error; err != nil {
				return fmt.Errorf("copying dependency edge: %w", err)
			}
		}

		now := time.Now()
		audit := &models.WorkflowInstance{
			DocumentID:   source.ID,
			WorkflowType: models.WorkflowUpVersion,
			State:        models.WorkflowStateCompleted,
			InitiatedBy:  actor,
			CompletedAt:  &now,
		}
		if err := tx.Create(audit).Error; err != nil {
			return fmt.Errorf("recording up-version workflow: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("version created",
		"family_id", draft.FamilyID,
		"version", draft.Version().String(),
		"bump", kind,
		"reason", reason,
	)
	return draft, nil
}

// PromoteToEffective makes an approved version the family's effective
// one. Every other EFFECTIVE or SCHEDULED_FOR_OBSOLESCENCE member of
// the family is superseded in the same transaction: two documents of
// one family are never observable as EFFECTIVE simultaneously.
func (c *Chain) PromoteToEffective(ctx context.Context, newVersionID uuid.UUID, actor string) (*models.Document, error) {
	var promoted *models.Document
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := models.GetDocument(tx, newVersionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &dcerr.NotFoundError{Resource: "document", ID: newVersionID.String()}
			}
			return fmt.Errorf("loading document: %w", err)
		}

		var current []models.Document
		err = tx.Where("family_id = ? AND id <> ? AND status IN ?",
			doc.FamilyID, doc.ID,
			[]models.DocumentStatus{models.StatusEffective, models.StatusScheduledForObsolescence}).
			Find(&current).Error
		if err != nil {
			return fmt.Errorf("loading current effective versions: %w", err)
		}

		for _, member := range current {
			if _, err := c.machine.ApplyIn(tx, member.ID, workflow.ActionSupersede, actor); err != nil {
				return err
			}
		}

		promoted, err = c.machine.ApplyIn(tx, doc.ID, workflow.ActionMakeEffective, actor)
		if err != nil {
			return err
		}

		nextReview := time.Now().Add(c.reviewInterval)
		err = tx.Model(&models.Document{}).
			Where("id = ?", promoted.ID).
			Update("next_review_date", nextReview).Error
		if err != nil {
			return fmt.Errorf("scheduling next review: %w", err)
		}
		promoted.NextReviewDate = &nextReview
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("version promoted to effective",
		"family_id", promoted.FamilyID,
		"version", promoted.Version().String(),
	)
	return promoted, nil
}

// FamilyVersions returns every version in the family ordered by
// (major, minor) descending.
func (c *Chain) FamilyVersions(ctx context.Context, familyID uuid.UUID) ([]models.Document, error) {
	docs, err := models.GetFamilyVersions(c.db.WithContext(ctx), familyID)
	if err != nil {
		return nil, fmt.Errorf("loading family versions: %w", err)
	}
	if len(docs) == 0 {
		return nil, &dcerr.NotFoundError{Resource: "family", ID: familyID.String()}
	}
	return docs, nil
}

// LatestEffective returns the family's current effective version, or
// nil when the family has none.
func (c *Chain) LatestEffective(ctx context.Context, familyID uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := c.db.WithContext(ctx).
		Where("family_id = ? AND status = ?", familyID, models.StatusEffective).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading effective version: %w", err)
	}
	return &doc, nil
}

func (c *Chain) highestVersion(tx *gorm.DB, familyID uuid.UUID) (docversion.Number, error) {
	var top models.Document
	err := tx.Where("family_id = ?", familyID).
		Order("version_major DESC, version_minor DESC").
		First(&top).Error
	if err != nil {
		return docversion.Number{}, fmt.Errorf("finding highest family version: %w", err)
	}
	return top.Version(), nil
}
