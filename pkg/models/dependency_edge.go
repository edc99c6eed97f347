package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DependencyKind categorizes the relationship between two documents.
// Well-known constants are provided below, but kinds are extensible.
type DependencyKind string

const (
	DependencyReferences DependencyKind = "references"
	DependencyImplements DependencyKind = "implements"
	DependencyDerivedOf  DependencyKind = "derived-of"
	DependencySupports   DependencyKind = "supports"
)

// IsValid reports whether the kind is a non-empty string of at most 50
// characters. Kinds are extensible, so any such value is accepted.
func (k DependencyKind) IsValid() bool {
	return len(k) > 0 && len(k) <= 50
}

// DependencyEdge is a directed dependency from one document version to
// another. Family ids are denormalized onto the edge so cycle checks
// and dependent lookups can run over the edge relation alone, without
// joining documents.
//
// Edges are soft-deleted: Active flips to false and the row is kept
// for audit. Only active edges participate in cycle detection,
// dependency chains, and obsolescence checks.
type DependencyEdge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FromDocumentID uuid.UUID `gorm:"type:uuid;not null;index:idx_dep_edges_from" json:"fromDocumentId"`
	FromFamilyID   uuid.UUID `gorm:"type:uuid;not null;index:idx_dep_edges_from_family" json:"fromFamilyId"`
	ToDocumentID   uuid.UUID `gorm:"type:uuid;not null;index:idx_dep_edges_to" json:"toDocumentId"`
	ToFamilyID     uuid.UUID `gorm:"type:uuid;not null;index:idx_dep_edges_to_family" json:"toFamilyId"`

	Kind     DependencyKind `gorm:"type:varchar(50);not null" json:"kind"`
	Critical bool           `gorm:"not null;default:false" json:"critical"`
	Active   bool           `gorm:"not null;default:true;index:idx_dep_edges_active" json:"active"`

	CreatedBy     string     `gorm:"type:varchar(200)" json:"createdBy,omitempty"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

// TableName specifies the table name.
func (DependencyEdge) TableName() string {
	return "dependency_edges"
}

// GetActiveEdgesFrom retrieves the active outbound edges of a document.
func GetActiveEdgesFrom(db *gorm.DB, documentID uuid.UUID) ([]DependencyEdge, error) {
	var edges []DependencyEdge
	err := db.Where("from_document_id = ? AND active = ?", documentID, true).
		Order("id").
		Find(&edges).Error
	return edges, err
}

// GetActiveEdgesTo retrieves the active inbound edges of a document,
// i.e. its dependents.
func GetActiveEdgesTo(db *gorm.DB, documentID uuid.UUID) ([]DependencyEdge, error) {
	var edges []DependencyEdge
	err := db.Where("to_document_id = ? AND active = ?", documentID, true).
		Order("id").
		Find(&edges).Error
	return edges, err
}
