package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewOutcome is the decision recorded when a periodic review
// completes.
type ReviewOutcome string

const (
	// OutcomeConfirmed leaves the current version effective and only
	// moves the next review date forward.
	OutcomeConfirmed ReviewOutcome = "CONFIRMED"

	// OutcomeMinorUpversion records that a minor new version is needed.
	OutcomeMinorUpversion ReviewOutcome = "MINOR_UPVERSION"

	// OutcomeMajorUpversion records that a major new version is needed.
	OutcomeMajorUpversion ReviewOutcome = "MAJOR_UPVERSION"
)

// IsValid reports whether the outcome is one of the known values.
func (o ReviewOutcome) IsValid() bool {
	return o == OutcomeConfirmed || o == OutcomeMinorUpversion || o == OutcomeMajorUpversion
}

// RequiresUpversion reports whether the outcome calls for a new
// version. Recording the outcome never creates the version itself;
// that is a separate, explicit call.
func (o ReviewOutcome) RequiresUpversion() bool {
	return o == OutcomeMinorUpversion || o == OutcomeMajorUpversion
}

// ReviewRecord is one entry in a document's append-only review audit
// trail. The periodic sweep opens a pending record (Outcome empty,
// Pending true); completing the review fills the decision exactly
// once. Completed records are never updated again.
type ReviewRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	DocumentID uuid.UUID `gorm:"type:uuid;not null;index:idx_review_records_document" json:"documentId"`

	ReviewDate time.Time     `gorm:"not null" json:"reviewDate"`
	Reviewer   string        `gorm:"type:varchar(200)" json:"reviewer"`
	Outcome    ReviewOutcome `gorm:"type:varchar(30)" json:"outcome,omitempty"`
	Comments   string        `gorm:"type:text" json:"comments,omitempty"`

	NextReviewDate *time.Time `json:"nextReviewDate,omitempty"`

	// LinkedNewVersionID points at the version later created because of
	// this review, when the outcome required up-versioning.
	LinkedNewVersionID *uuid.UUID `gorm:"type:uuid" json:"linkedNewVersionId,omitempty"`

	Pending bool `gorm:"not null;default:true;index:idx_review_records_pending" json:"pending"`
}

// TableName specifies the table name.
func (ReviewRecord) TableName() string {
	return "review_records"
}

// GetPendingReview retrieves the open review record for a document, if
// any.
func GetPendingReview(db *gorm.DB, documentID uuid.UUID) (*ReviewRecord, error) {
	var rec ReviewRecord
	err := db.Where("document_id = ? AND pending = ?", documentID, true).
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetReviewHistory retrieves every review record for a document, most
// recent first.
func GetReviewHistory(db *gorm.DB, documentID uuid.UUID) ([]ReviewRecord, error) {
	var recs []ReviewRecord
	err := db.Where("document_id = ?", documentID).
		Order("id DESC").
		Find(&recs).Error
	return recs, err
}
