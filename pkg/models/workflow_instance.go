package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkflowType identifies which kind of workflow governs a document's
// current activity. Types must be registered in the injected workflow
// registry before a transition may start them.
type WorkflowType string

const (
	WorkflowReview    WorkflowType = "REVIEW"
	WorkflowApproval  WorkflowType = "APPROVAL"
	WorkflowUpVersion WorkflowType = "UP_VERSION"
	WorkflowObsolete  WorkflowType = "OBSOLETE"
)

// IsValid reports whether the workflow type is one of the known values.
func (t WorkflowType) IsValid() bool {
	switch t {
	case WorkflowReview, WorkflowApproval, WorkflowUpVersion, WorkflowObsolete:
		return true
	}
	return false
}

// WorkflowState is the lifecycle of a workflow instance itself.
type WorkflowState string

const (
	WorkflowStateActive    WorkflowState = "ACTIVE"
	WorkflowStateCompleted WorkflowState = "COMPLETED"
	WorkflowStateCancelled WorkflowState = "CANCELLED"
)

// WorkflowInstance records one run of a workflow on one document.
// At most one instance per document may be ACTIVE at a time; the state
// machine enforces this under the document's transition transaction.
type WorkflowInstance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	DocumentID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_workflow_instances_document" json:"documentId"`
	WorkflowType WorkflowType  `gorm:"type:varchar(30);not null" json:"workflowType"`
	State        WorkflowState `gorm:"type:varchar(20);not null;index:idx_workflow_instances_state" json:"state"`

	InitiatedBy string     `gorm:"type:varchar(200)" json:"initiatedBy"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TableName specifies the table name.
func (WorkflowInstance) TableName() string {
	return "workflow_instances"
}

// BeforeCreate hook sets the initial state.
func (w *WorkflowInstance) BeforeCreate(tx *gorm.DB) error {
	if w.State == "" {
		w.State = WorkflowStateActive
	}
	return nil
}

// GetActiveWorkflow retrieves the active workflow instance for a
// document, if any.
func GetActiveWorkflow(db *gorm.DB, documentID uuid.UUID) (*WorkflowInstance, error) {
	var wf WorkflowInstance
	err := db.Where("document_id = ? AND state = ?", documentID, WorkflowStateActive).
		First(&wf).Error
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// HasActiveWorkflow reports whether a document has an active workflow
// instance.
func HasActiveWorkflow(db *gorm.DB, documentID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&WorkflowInstance{}).
		Where("document_id = ? AND state = ?", documentID, WorkflowStateActive).
		Count(&count).Error
	return count > 0, err
}

// Complete marks the instance COMPLETED.
func (w *WorkflowInstance) Complete(db *gorm.DB) error {
	now := time.Now()
	return db.Model(w).Updates(map[string]interface{}{
		"state":        WorkflowStateCompleted,
		"completed_at": now,
	}).Error
}

// Cancel marks the instance CANCELLED.
func (w *WorkflowInstance) Cancel(db *gorm.DB) error {
	now := time.Now()
	return db.Model(w).Updates(map[string]interface{}{
		"state":        WorkflowStateCancelled,
		"completed_at": now,
	}).Error
}
