// Package graph owns the directed dependency graph between documents.
// Edges are stored as an explicit relation keyed by opaque document and
// family identifiers; cycle detection runs as a pure traversal over the
// edge set at family granularity, so a document family can never depend
// on itself through any number of hops or versions.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/compliance-forge/docuflow/pkg/dcerr"
	"github.com/compliance-forge/docuflow/pkg/models"
)

// maxTraversalDepth bounds the insertion-time reachability walk. Edges
// past the bound are not examined, so a cycle closed only through a
// deeper chain would be missed here and surface in the unbounded
// DetectCycles scan instead.
const maxTraversalDepth = 100

// Graph provides dependency-edge operations over the database.
//
// The check-then-insert sequence in AddDependency is serialized by a
// single write lock: two concurrent insertions that would jointly
// create a cycle must not both pass their reachability checks against
// stale state. Reads take no lock.
type Graph struct {
	db  *gorm.DB
	log hclog.Logger

	writeMu sync.Mutex
}

// New creates a dependency graph over the given database.
func New(db *gorm.DB, log hclog.Logger) *Graph {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Graph{db: db, log: log.Named("graph")}
}

// AddDependency inserts an active edge from one document version to
// another after validating that the edge keeps the family-collapsed
// graph acyclic.
//
// Rejections:
//   - SelfDependency when both documents belong to the same family,
//     including different versions of one family.
//   - CircularDependency when from's family is reachable from to's
//     family over active edges; the error carries the cycle path.
func (g *Graph) AddDependency(ctx context.Context, fromID, toID uuid.UUID, kind models.DependencyKind, critical bool, actor string) (*models.DependencyEdge, error) {
	from, err := g.getDocument(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := g.getDocument(ctx, toID)
	if err != nil {
		return nil, err
	}

	if from.FamilyID == to.FamilyID {
		return nil, &dcerr.SelfDependencyError{
			FromDocumentID: from.ID.String(),
			ToDocumentID:   to.ID.String(),
			FamilyID:       from.FamilyID.String(),
		}
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	var edge *models.DependencyEdge
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		path, err := g.familyPath(tx, to.FamilyID, from.FamilyID)
		if err != nil {
			return err
		}
		if path != nil {
			// The new edge from -> to closes the loop to -> ... -> from;
			// path already ends at from's family.
			cycle := make([]string, 0, len(path)+1)
			cycle = append(cycle, from.FamilyID.String())
			for _, fam := range path {
				cycle = append(cycle, fam.String())
			}
			return &dcerr.CircularDependencyError{CyclePath: cycle}
		}

		edge = &models.DependencyEdge{
			FromDocumentID: from.ID,
			FromFamilyID:   from.FamilyID,
			ToDocumentID:   to.ID,
			ToFamilyID:     to.FamilyID,
			Kind:           kind,
			Critical:       critical,
			Active:         true,
			CreatedBy:      actor,
		}
		return tx.Create(edge).Error
	})
	if err != nil {
		return nil, err
	}

	g.log.Debug("dependency added",
		"from", from.ID, "to", to.ID, "kind", kind, "critical", critical)
	return edge, nil
}

// RemoveDependency deactivates the active edges between two document
// versions. Edges are never hard-deleted; the rows stay for audit.
func (g *Graph) RemoveDependency(ctx context.Context, fromID, toID uuid.UUID) error {
	now := time.Now()
	res := g.db.WithContext(ctx).Model(&models.DependencyEdge{}).
		Where("from_document_id = ? AND to_document_id = ? AND active = ?", fromID, toID, true).
		Updates(map[string]interface{}{
			"active":         false,
			"deactivated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("deactivating edge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &dcerr.NotFoundError{
			Resource: "active dependency edge",
			ID:       fmt.Sprintf("%s -> %s", fromID, toID),
		}
	}
	return nil
}

// DependencyChain returns the ordered transitive closure of active
// dependencies reachable from the document: breadth-first, each
// document once, never the starting document itself. The graph is
// acyclic by construction of the insertion-time check, so the walk
// terminates.
func (g *Graph) DependencyChain(ctx context.Context, documentID uuid.UUID) ([]models.Document, error) {
	if _, err := g.getDocument(ctx, documentID); err != nil {
		return nil, err
	}

	db := g.db.WithContext(ctx)
	visited := map[uuid.UUID]bool{documentID: true}
	frontier := []uuid.UUID{documentID}
	var orderedIDs []uuid.UUID

	for depth := 0; len(frontier) > 0 && depth < maxTraversalDepth; depth++ {
		var edges []models.DependencyEdge
		err := db.Where("from_document_id IN ? AND active = ?", frontier, true).
			Order("id").
			Find(&edges).Error
		if err != nil {
			return nil, fmt.Errorf("walking dependencies: %w", err)
		}

		var next []uuid.UUID
		for _, e := range edges {
			if visited[e.ToDocumentID] {
				continue
			}
			visited[e.ToDocumentID] = true
			orderedIDs = append(orderedIDs, e.ToDocumentID)
			next = append(next, e.ToDocumentID)
		}
		frontier = next
	}

	if len(orderedIDs) == 0 {
		return nil, nil
	}

	var docs []models.Document
	if err := db.Where("id IN ?", orderedIDs).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("loading chain documents: %w", err)
	}
	byID := make(map[uuid.UUID]models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	ordered := make([]models.Document, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

// ActiveDependents returns the active inbound edges of a document
// version, i.e. the documents that depend on it.
func (g *Graph) ActiveDependents(ctx context.Context, documentID uuid.UUID) ([]models.DependencyEdge, error) {
	return models.GetActiveEdgesTo(g.db.WithContext(ctx), documentID)
}

// Cycle is one family-level cycle: a sequence of family ids whose
// first element is repeated at the end.
type Cycle []string

// DetectCycles scans every active edge and returns all family-level
// cycles. This is a system-health audit, not part of the insertion
// path: a healthy graph returns nothing, because AddDependency refuses
// cycle-creating edges.
func (g *Graph) DetectCycles(ctx context.Context) ([]Cycle, error) {
	var edges []models.DependencyEdge
	err := g.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("loading active edges: %w", err)
	}

	adjacency := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range edges {
		adjacency[e.FromFamilyID] = append(adjacency[e.FromFamilyID], e.ToFamilyID)
	}

	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[uuid.UUID]int, len(adjacency))

	var cycles []Cycle
	var stack []uuid.UUID

	var visit func(node uuid.UUID)
	visit = func(node uuid.UUID) {
		color[node] = grey
		stack = append(stack, node)

		for _, next := range adjacency[node] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				// next is on the stack: the slice from its position to
				// the top is a cycle.
				start := 0
				for i, n := range stack {
					if n == next {
						start = i
						break
					}
				}
				cycle := make(Cycle, 0, len(stack)-start+1)
				for _, n := range stack[start:] {
					cycle = append(cycle, n.String())
				}
				cycle = append(cycle, next.String())
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for node := range adjacency {
		if color[node] == white {
			visit(node)
		}
	}

	if len(cycles) > 0 {
		g.log.Warn("dependency cycles detected", "count", len(cycles))
	}
	return cycles, nil
}

// familyPath searches for a path of active edges from startFamily to
// targetFamily, collapsed to family granularity. It returns the path
// (starting at startFamily, ending at targetFamily) or nil when the
// target is unreachable within the depth bound.
func (g *Graph) familyPath(tx *gorm.DB, startFamily, targetFamily uuid.UUID) ([]uuid.UUID, error) {
	parent := map[uuid.UUID]uuid.UUID{}
	visited := map[uuid.UUID]bool{startFamily: true}
	frontier := []uuid.UUID{startFamily}

	for depth := 0; len(frontier) > 0 && depth < maxTraversalDepth; depth++ {
		var edges []models.DependencyEdge
		err := tx.Where("from_family_id IN ? AND active = ?", frontier, true).
			Find(&edges).Error
		if err != nil {
			return nil, fmt.Errorf("traversing families: %w", err)
		}

		var next []uuid.UUID
		for _, e := range edges {
			if visited[e.ToFamilyID] {
				continue
			}
			visited[e.ToFamilyID] = true
			parent[e.ToFamilyID] = e.FromFamilyID

			if e.ToFamilyID == targetFamily {
				// Reconstruct start -> ... -> target.
				var reversed []uuid.UUID
				for node := targetFamily; ; {
					reversed = append(reversed, node)
					if node == startFamily {
						break
					}
					node = parent[node]
				}
				path := make([]uuid.UUID, len(reversed))
				for i, n := range reversed {
					path[len(reversed)-1-i] = n
				}
				return path, nil
			}
			next = append(next, e.ToFamilyID)
		}
		frontier = next
	}
	return nil, nil
}

func (g *Graph) getDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := models.GetDocument(g.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &dcerr.NotFoundError{Resource: "document", ID: id.String()}
		}
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return doc, nil
}
