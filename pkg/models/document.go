package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/pkg/docversion"
)

// DocumentStatus is the closed set of lifecycle states. Transitions
// between states are governed exclusively by the workflow state
// machine; nothing else writes the status column.
type DocumentStatus string

const (
	StatusDraft                    DocumentStatus = "DRAFT"
	StatusPendingReview            DocumentStatus = "PENDING_REVIEW"
	StatusUnderReview              DocumentStatus = "UNDER_REVIEW"
	StatusReviewed                 DocumentStatus = "REVIEWED"
	StatusPendingApproval          DocumentStatus = "PENDING_APPROVAL"
	StatusUnderApproval            DocumentStatus = "UNDER_APPROVAL"
	StatusApprovedPendingEffective DocumentStatus = "APPROVED_PENDING_EFFECTIVE"
	StatusEffective                DocumentStatus = "EFFECTIVE"
	StatusScheduledForObsolescence DocumentStatus = "SCHEDULED_FOR_OBSOLESCENCE"
	StatusSuperseded               DocumentStatus = "SUPERSEDED"
	StatusObsolete                 DocumentStatus = "OBSOLETE"
	StatusTerminated               DocumentStatus = "TERMINATED"
)

// AllStatuses lists every lifecycle state.
func AllStatuses() []DocumentStatus {
	return []DocumentStatus{
		StatusDraft,
		StatusPendingReview,
		StatusUnderReview,
		StatusReviewed,
		StatusPendingApproval,
		StatusUnderApproval,
		StatusApprovedPendingEffective,
		StatusEffective,
		StatusScheduledForObsolescence,
		StatusSuperseded,
		StatusObsolete,
		StatusTerminated,
	}
}

// IsValid reports whether s is one of the known lifecycle states.
func (s DocumentStatus) IsValid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsRetired reports whether the version has left active circulation.
// Retired versions are never physically deleted.
func (s DocumentStatus) IsRetired() bool {
	return s == StatusSuperseded || s == StatusObsolete || s == StatusTerminated
}

// Document is a single version instance of a controlled document.
// All versions of the "same" document share a FamilyID; at most one
// document per family is EFFECTIVE at any instant, and
// (FamilyID, VersionMajor, VersionMinor) is unique.
type Document struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// FamilyID is assigned once, at creation or versioning time. It is
	// never re-derived from the document number or title.
	FamilyID uuid.UUID `gorm:"type:uuid;not null;index:idx_documents_family;uniqueIndex:idx_documents_family_version,priority:1" json:"familyId"`

	VersionMajor int `gorm:"not null;uniqueIndex:idx_documents_family_version,priority:2" json:"versionMajor"`
	VersionMinor int `gorm:"not null;uniqueIndex:idx_documents_family_version,priority:3" json:"versionMinor"`

	Title  string         `gorm:"type:varchar(500);not null" json:"title"`
	Status DocumentStatus `gorm:"type:varchar(40);not null;index:idx_documents_status" json:"status"`

	DocumentType   string `gorm:"type:varchar(100)" json:"documentType"`
	DocumentSource string `gorm:"type:varchar(100)" json:"documentSource"`

	// Opaque identity tokens resolved by the external identity provider.
	Author   string `gorm:"type:varchar(200)" json:"author"`
	Reviewer string `gorm:"type:varchar(200)" json:"reviewer,omitempty"`
	Approver string `gorm:"type:varchar(200)" json:"approver,omitempty"`

	EffectiveDate  *time.Time `json:"effectiveDate,omitempty"`
	NextReviewDate *time.Time `gorm:"index:idx_documents_next_review" json:"nextReviewDate,omitempty"`
}

// TableName specifies the table name.
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate hook ensures identities and status are set.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.FamilyID == uuid.Nil {
		d.FamilyID = uuid.New()
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	return nil
}

// Version returns the document's version number as a value type.
func (d *Document) Version() docversion.Number {
	return docversion.Number{Major: d.VersionMajor, Minor: d.VersionMinor}
}

// GetDocument retrieves a document by id.
func GetDocument(db *gorm.DB, id uuid.UUID) (*Document, error) {
	var doc Document
	if err := db.First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetFamilyVersions retrieves every version in a family ordered by
// (major, minor) descending.
func GetFamilyVersions(db *gorm.DB, familyID uuid.UUID) ([]Document, error) {
	var docs []Document
	err := db.Where("family_id = ?", familyID).
		Order("version_major DESC, version_minor DESC").
		Find(&docs).Error
	return docs, err
}
