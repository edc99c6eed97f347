// Package review implements the periodic review engine. An external
// scheduler calls Sweep on a fixed cadence; the sweep only flags the
// need for a human decision. Recording a review outcome and creating
// the version it may call for are deliberately separate operations:
// CompleteReview records intent, and version creation is a distinct,
// explicit call made by the caller.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/internal/workflow"
	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/docversion"
	"github.com/compliance-forge/docuflow/pkg/models"
	"github.com/compliance-forge/docuflow/pkg/notifications"
)

// SchedulerActor is recorded as the initiator of workflow instances
// opened by the sweep.
const SchedulerActor = "scheduler"

// Engine orchestrates periodic reviews over the state machine and the
// injected workflow-type registry.
type Engine struct {
	db       *gorm.DB
	registry *workflow.Registry
	notifier notifications.Notifier
	log      hclog.Logger
}

// New creates a periodic review engine.
func New(db *gorm.DB, registry *workflow.Registry, notifier notifications.Notifier, log hclog.Logger) *Engine {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	return &Engine{db: db, registry: registry, notifier: notifier, log: log.Named("review")}
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Scanned int
	Opened  []uuid.UUID
	Skipped int
}

// Sweep finds every EFFECTIVE document whose next review date has
// arrived and which has no active workflow, and opens a REVIEW
// workflow instance plus a pending review record for each. Document
// status is never touched and no version is created here.
//
// Each document is handled in its own transaction, so a crash mid-sweep
// leaves a consistent prefix. Running the sweep twice on the same day
// opens nothing new: documents already under an active workflow are
// skipped. Per-document failures are aggregated and do not stop the
// sweep.
func (e *Engine) Sweep(ctx context.Context, today time.Time) (*SweepResult, error) {
	if !e.registry.Enabled(models.WorkflowReview) {
		return nil, &dcerr.MissingWorkflowTypeError{WorkflowType: string(models.WorkflowReview)}
	}

	var candidates []models.Document
	err := e.db.WithContext(ctx).
		Where("status = ? AND next_review_date IS NOT NULL AND next_review_date <= ?",
			models.StatusEffective, today).
		Order("next_review_date").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("scanning review candidates: %w", err)
	}

	result := &SweepResult{Scanned: len(candidates)}
	var sweepErr *multierror.Error

	for _, doc := range candidates {
		opened, err := e.openReview(ctx, doc, today)
		if err != nil {
			sweepErr = multierror.Append(sweepErr,
				fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		if !opened {
			result.Skipped++
			continue
		}
		result.Opened = append(result.Opened, doc.ID)

		// Fire and forget; delivery failure never fails the sweep.
		_ = e.notifier.Publish(ctx, &notifications.Message{
			Type:       notifications.EventReviewRequested,
			DocumentID: doc.ID.String(),
			FamilyID:   doc.FamilyID.String(),
			Version:    doc.Version().String(),
			ActorID:    SchedulerActor,
			Recipients: []string{doc.Reviewer},
			Context: map[string]any{
				"title":       doc.Title,
				"review_date": today.Format("2006-01-02"),
			},
		})
	}

	e.log.Info("review sweep finished",
		"scanned", result.Scanned,
		"opened", len(result.Opened),
		"skipped", result.Skipped,
	)
	return result, sweepErr.ErrorOrNil()
}

// openReview opens the workflow instance and pending review record for
// one candidate, in its own transaction. Returns false when the
// document already has an active workflow.
func (e *Engine) openReview(ctx context.Context, doc models.Document, today time.Time) (bool, error) {
	opened := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := models.HasActiveWorkflow(tx, doc.ID)
		if err != nil {
			return fmt.Errorf("checking active workflow: %w", err)
		}
		if active {
			return nil
		}

		instance := &models.WorkflowInstance{
			DocumentID:   doc.ID,
			WorkflowType: models.WorkflowReview,
			State:        models.WorkflowStateActive,
			InitiatedBy:  SchedulerActor,
		}
		if err := tx.Create(instance).Error; err != nil {
			return fmt.Errorf("creating review workflow: %w", err)
		}

		record := &models.ReviewRecord{
			DocumentID: doc.ID,
			ReviewDate: today,
			Reviewer:   doc.Reviewer,
			Pending:    true,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("creating pending review record: %w", err)
		}

		opened = true
		return nil
	})
	return opened, err
}

// Result is the outcome of completing a review. UpversionRequired
// signals that the caller should follow up with an explicit
// CreateVersion call; this method never creates the version itself.
type Result struct {
	Record            *models.ReviewRecord
	UpversionRequired bool
	RecommendedBump   docversion.BumpKind
}

// CompleteReview records the reviewer's decision as an immutable,
// append-only review record and closes the document's REVIEW workflow.
// CONFIRMED moves the next review date forward and leaves the document
// EFFECTIVE; the up-version outcomes also leave the document untouched
// and only report the recommended bump kind. A CONFIRMED review with a
// nil nextReviewDate keeps the document's existing, already due review
// date, so the next sweep reopens the review.
func (e *Engine) CompleteReview(ctx context.Context, documentID uuid.UUID, outcome models.ReviewOutcome, comments string, nextReviewDate *time.Time, reviewer string) (*Result, error) {
	if !outcome.IsValid() {
		return nil, fmt.Errorf("unknown review outcome %q", outcome)
	}

	var result *Result
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := models.GetDocument(tx, documentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &dcerr.NotFoundError{Resource: "document", ID: documentID.String()}
			}
			return fmt.Errorf("loading document: %w", err)
		}

		record, err := models.GetPendingReview(tx, doc.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Ad hoc review without a prior sweep; append a fresh record.
			record = &models.ReviewRecord{
				DocumentID: doc.ID,
				ReviewDate: time.Now(),
				Pending:    true,
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("creating review record: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("loading pending review: %w", err)
		}

		updates := map[string]interface{}{
			"outcome":  outcome,
			"comments": comments,
			"reviewer": reviewer,
			"pending":  false,
		}
		if nextReviewDate != nil {
			updates["next_review_date"] = *nextReviewDate
		}
		if err := tx.Model(record).Updates(updates).Error; err != nil {
			return fmt.Errorf("completing review record: %w", err)
		}

		if outcome == models.OutcomeConfirmed && nextReviewDate != nil {
			err = tx.Model(&models.Document{}).
				Where("id = ?", doc.ID).
				Update("next_review_date", *nextReviewDate).Error
			if err != nil {
				return fmt.Errorf("updating next review date: %w", err)
			}
		}

		wf, err := models.GetActiveWorkflow(tx, doc.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("loading active workflow: %w", err)
		}
		if wf != nil && wf.WorkflowType == models.WorkflowReview {
			if err := wf.Complete(tx); err != nil {
				return fmt.Errorf("closing review workflow: %w", err)
			}
		}

		record.Outcome = outcome
		record.Comments = comments
		record.Reviewer = reviewer
		record.Pending = false

		result = &Result{Record: record, UpversionRequired: outcome.RequiresUpversion()}
		switch outcome {
		case models.OutcomeMinorUpversion:
			result.RecommendedBump = docversion.BumpMinor
		case models.OutcomeMajorUpversion:
			result.RecommendedBump = docversion.BumpMajor
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = e.notifier.Publish(ctx, &notifications.Message{
		Type:       notifications.EventReviewCompleted,
		DocumentID: documentID.String(),
		ActorID:    reviewer,
		Context: map[string]any{
			"outcome":  string(outcome),
			"comments": comments,
		},
	})

	return result, nil
}

// LinkNewVersion records on the most recent completed up-version
// review which draft was created because of it. Called by the version
// creation path; absence of a matching review is not an error.
func (e *Engine) LinkNewVersion(ctx context.Context, sourceID, newVersionID uuid.UUID) error {
	var record models.ReviewRecord
	err := e.db.WithContext(ctx).
		Where("document_id = ? AND pending = ? AND outcome IN ? AND linked_new_version_id IS NULL",
			sourceID, false,
			[]models.ReviewOutcome{models.OutcomeMinorUpversion, models.OutcomeMajorUpversion}).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding up-version review: %w", err)
	}
	return e.db.WithContext(ctx).Model(&record).
		Update("linked_new_version_id", newVersionID).Error
}
