// Package workflow implements the per-document lifecycle state
// machine. Transitions form a closed table keyed by (status, action);
// anything absent from the table is rejected. Transitions that start a
// workflow require the corresponding workflow type to be registered
// and at most one active workflow instance per document.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/models"
)

// Action is a request to advance a document's lifecycle.
type Action string

const (
	ActionSubmitForReview      Action = "submit_for_review"
	ActionStartReview          Action = "start_review"
	ActionCompleteReview       Action = "complete_review"
	ActionSubmitForApproval    Action = "submit_for_approval"
	ActionStartApproval        Action = "start_approval"
	ActionApprove              Action = "approve"
	ActionReject               Action = "reject"
	ActionMakeEffective        Action = "make_effective"
	ActionScheduleObsolescence Action = "schedule_obsolescence"
	ActionMarkObsolete         Action = "mark_obsolete"
	ActionSupersede            Action = "supersede"
	ActionTerminate            Action = "terminate"
)

type transitionKey struct {
	from   models.DocumentStatus
	action Action
}

// transitionSpec describes one row of the transition table. A
// transition may start a workflow (requiring its type to be
// registered), close the document's active workflow, or both.
type transitionSpec struct {
	to             models.DocumentStatus
	startsWorkflow models.WorkflowType // zero when no workflow is started
	closesWorkflow bool
	cancels        bool // close by cancellation rather than completion
}

// transitions is the closed transition table. SUPERSEDED, OBSOLETE and
// TERMINATED have no outgoing rows: retired versions are immutable.
var transitions = map[transitionKey]transitionSpec{
	{models.StatusDraft, ActionSubmitForReview}: {
		to:             models.StatusPendingReview,
		startsWorkflow: models.WorkflowReview,
	},
	{models.StatusPendingReview, ActionStartReview}: {
		to: models.StatusUnderReview,
	},
	{models.StatusUnderReview, ActionCompleteReview}: {
		to:             models.StatusReviewed,
		closesWorkflow: true,
	},
	{models.StatusUnderReview, ActionReject}: {
		to:             models.StatusDraft,
		closesWorkflow: true,
		cancels:        true,
	},
	{models.StatusReviewed, ActionSubmitForApproval}: {
		to:             models.StatusPendingApproval,
		startsWorkflow: models.WorkflowApproval,
	},
	{models.StatusPendingApproval, ActionStartApproval}: {
		to: models.StatusUnderApproval,
	},
	{models.StatusUnderApproval, ActionApprove}: {
		to:             models.StatusApprovedPendingEffective,
		closesWorkflow: true,
	},
	{models.StatusUnderApproval, ActionReject}: {
		to:             models.StatusDraft,
		closesWorkflow: true,
		cancels:        true,
	},
	{models.StatusApprovedPendingEffective, ActionMakeEffective}: {
		to: models.StatusEffective,
	},
	{models.StatusEffective, ActionScheduleObsolescence}: {
		to:             models.StatusScheduledForObsolescence,
		startsWorkflow: models.WorkflowObsolete,
	},
	{models.StatusScheduledForObsolescence, ActionMarkObsolete}: {
		to:             models.StatusObsolete,
		closesWorkflow: true,
	},
	{models.StatusEffective, ActionSupersede}: {
		to: models.StatusSuperseded,
	},
	{models.StatusScheduledForObsolescence, ActionSupersede}: {
		to:             models.StatusSuperseded,
		closesWorkflow: true,
		cancels:        true,
	},
	{models.StatusDraft, ActionTerminate}:                    {to: models.StatusTerminated},
	{models.StatusPendingReview, ActionTerminate}:            {to: models.StatusTerminated, closesWorkflow: true, cancels: true},
	{models.StatusUnderReview, ActionTerminate}:              {to: models.StatusTerminated, closesWorkflow: true, cancels: true},
	{models.StatusReviewed, ActionTerminate}:                 {to: models.StatusTerminated},
	{models.StatusPendingApproval, ActionTerminate}:          {to: models.StatusTerminated, closesWorkflow: true, cancels: true},
	{models.StatusUnderApproval, ActionTerminate}:            {to: models.StatusTerminated, closesWorkflow: true, cancels: true},
	{models.StatusApprovedPendingEffective, ActionTerminate}: {to: models.StatusTerminated},
}

// AllowedActions returns the actions available from a status, in
// stable order. Empty for retired states.
func AllowedActions(from models.DocumentStatus) []Action {
	var out []Action
	for key := range transitions {
		if key.from == from {
			out = append(out, key.action)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Target returns the destination status for a (status, action) pair
// and whether the pair is present in the table.
func Target(from models.DocumentStatus, action Action) (models.DocumentStatus, bool) {
	spec, ok := transitions[transitionKey{from, action}]
	return spec.to, ok
}

// StateMachine applies lifecycle transitions to documents. Status
// updates use an optimistic compare-and-swap on the status column so
// two actors cannot advance the same document concurrently; the losing
// writer gets a ConcurrentModification and retries against fresh
// state.
type StateMachine struct {
	db       *gorm.DB
	registry *Registry
	log      hclog.Logger
}

// New creates a state machine over the given database with the
// injected workflow-type registry.
func New(db *gorm.DB, registry *Registry, log hclog.Logger) *StateMachine {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &StateMachine{db: db, registry: registry, log: log}
}

// Apply performs one transition in its own transaction.
func (m *StateMachine) Apply(ctx context.Context, documentID uuid.UUID, action Action, actor string) (*models.Document, error) {
	var doc *models.Document
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = m.ApplyIn(tx, documentID, action, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ApplyIn performs one transition inside an existing transaction. The
// version chain uses this to run supersession and promotion as a
// single atomic unit while still walking the transition table.
func (m *StateMachine) ApplyIn(tx *gorm.DB, documentID uuid.UUID, action Action, actor string) (*models.Document, error) {
	doc, err := models.GetDocument(tx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &dcerr.NotFoundError{Resource: "document", ID: documentID.String()}
		}
		return nil, fmt.Errorf("loading document: %w", err)
	}

	spec, ok := transitions[transitionKey{doc.Status, action}]
	if !ok {
		return nil, &dcerr.InvalidTransitionError{
			DocumentID: doc.ID.String(),
			From:       string(doc.Status),
			Action:     string(action),
		}
	}

	if spec.startsWorkflow != "" {
		if !m.registry.Enabled(spec.startsWorkflow) {
			return nil, &dcerr.MissingWorkflowTypeError{WorkflowType: string(spec.startsWorkflow)}
		}
		active, err := models.GetActiveWorkflow(tx, doc.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checking active workflow: %w", err)
		}
		if active != nil {
			return nil, &dcerr.WorkflowAlreadyActiveError{
				DocumentID:   doc.ID.String(),
				WorkflowType: string(active.WorkflowType),
			}
		}
		instance := &models.WorkflowInstance{
			DocumentID:   doc.ID,
			WorkflowType: spec.startsWorkflow,
			State:        models.WorkflowStateActive,
			InitiatedBy:  actor,
		}
		if err := tx.Create(instance).Error; err != nil {
			return nil, fmt.Errorf("creating workflow instance: %w", err)
		}
	}

	if spec.closesWorkflow {
		active, err := models.GetActiveWorkflow(tx, doc.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("loading active workflow: %w", err)
		}
		if active != nil {
			if spec.cancels {
				err = active.Cancel(tx)
			} else {
				err = active.Complete(tx)
			}
			if err != nil {
				return nil, fmt.Errorf("closing workflow instance: %w", err)
			}
		}
	}

	updates := map[string]interface{}{"status": spec.to}
	if spec.to == models.StatusEffective {
		updates["effective_date"] = time.Now()
	}

	res := tx.Model(&models.Document{}).
		Where("id = ? AND status = ?", doc.ID, doc.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("updating status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &dcerr.ConcurrentModificationError{DocumentID: doc.ID.String()}
	}

	m.log.Debug("transition applied",
		"document_id", doc.ID,
		"action", action,
		"from", doc.Status,
		"to", spec.to,
		"actor", actor,
	)

	doc.Status = spec.to
	return doc, nil
}
