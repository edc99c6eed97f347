// Package obsolescence decides whether retiring a document family is
// safe. The check is family-wide: every version, including already
// superseded ones, is inspected for active dependents, because a
// consumer may still reference an older version explicitly and
// retiring the family would orphan that reference.
package obsolescence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/internal/graph"
	"github.com/compliance-forge/docuflow/internal/versions"
	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/models"
)

// Validator composes the version chain (to enumerate a family) and the
// dependency graph (to find dependents).
type Validator struct {
	db    *gorm.DB
	chain *versions.Chain
	graph *graph.Graph
	log   hclog.Logger
}

// New creates an obsolescence validator.
func New(db *gorm.DB, chain *versions.Chain, g *graph.Graph, log hclog.Logger) *Validator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Validator{db: db, chain: chain, graph: g, log: log.Named("obsolescence")}
}

// CanObsoleteFamily returns nil when no version of the family has an
// active dependent, and a BlockingDependentsError naming every
// (dependent, through-version) pair otherwise.
func (v *Validator) CanObsoleteFamily(ctx context.Context, familyID uuid.UUID) error {
	summary, err := v.FamilyDependencySummary(ctx, familyID)
	if err != nil {
		return err
	}
	if len(summary.Dependents) == 0 {
		return nil
	}

	blocking := make([]dcerr.BlockingDependent, len(summary.Dependents))
	for i, d := range summary.Dependents {
		blocking[i] = dcerr.BlockingDependent{
			DependentID:    d.Dependent.ID.String(),
			DependentTitle: d.Dependent.Title,
			ThroughVersion: d.ThroughVersion.Version().String(),
			ThroughID:      d.ThroughVersion.ID.String(),
		}
	}
	return &dcerr.BlockingDependentsError{
		FamilyID:   familyID.String(),
		Dependents: blocking,
	}
}

// Dependent is one document holding an active edge onto a version of
// the family under consideration.
type Dependent struct {
	// Dependent is the referencing document.
	Dependent models.Document

	// ThroughVersion is the family version the dependent references.
	ThroughVersion models.Document

	// Edge is the active edge itself.
	Edge models.DependencyEdge

	// Outdated is true when the dependent is pinned to a version older
	// than the family's current effective one, making it a candidate
	// for a proactive update recommendation.
	Outdated bool
}

// Summary is the family-wide dependent enumeration.
type Summary struct {
	FamilyID   uuid.UUID
	Effective  *models.Document // nil when the family has no effective version
	Versions   []models.Document
	Dependents []Dependent
}

// FamilyDependencySummary enumerates every version in the family and
// each version's active dependents.
func (v *Validator) FamilyDependencySummary(ctx context.Context, familyID uuid.UUID) (*Summary, error) {
	family, err := v.chain.FamilyVersions(ctx, familyID)
	if err != nil {
		return nil, err
	}

	effective, err := v.chain.LatestEffective(ctx, familyID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		FamilyID:  familyID,
		Effective: effective,
		Versions:  family,
	}

	for _, version := range family {
		edges, err := v.graph.ActiveDependents(ctx, version.ID)
		if err != nil {
			return nil, fmt.Errorf("loading dependents of version %s: %w", version.Version(), err)
		}
		for _, edge := range edges {
			dependent, err := models.GetDocument(v.db.WithContext(ctx), edge.FromDocumentID)
			if err != nil {
				return nil, fmt.Errorf("loading dependent document: %w", err)
			}

			outdated := effective != nil && version.Version().Less(effective.Version())
			summary.Dependents = append(summary.Dependents, Dependent{
				Dependent:      *dependent,
				ThroughVersion: version,
				Edge:           edge,
				Outdated:       outdated,
			})
		}
	}

	return summary, nil
}
