// Package dcerr defines the typed error taxonomy for the document
// lifecycle core. Every business-rule failure surfaces as one of these
// types so callers can render a precise message (exact cycle path,
// exact blocking dependents) instead of a generic failure.
//
// Categories:
//   - validation: rule violations caught before any mutation
//   - conflict: conditions detected during the attempted mutation
//   - blocked: obsolescence-safety rejections
//   - not found: unknown identities
//
// Infrastructure errors (database connectivity and the like) are not
// part of this taxonomy; they propagate unchanged.
package dcerr

import (
	"errors"
	"fmt"
	"strings"
)

// Marker interfaces for error categories. Types implement exactly one.
type validationError interface{ isValidationError() }
type conflictError interface{ isConflictError() }
type blockedError interface{ isBlockedError() }
type notFoundError interface{ isNotFoundError() }

// IsValidation reports whether err is a business-rule validation failure.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is a mutation-time conflict.
func IsConflict(err error) bool {
	var c conflictError
	return errors.As(err, &c)
}

// IsBlocked reports whether err is an obsolescence-safety rejection.
func IsBlocked(err error) bool {
	var b blockedError
	return errors.As(err, &b)
}

// IsNotFound reports whether err refers to an unknown identity.
func IsNotFound(err error) bool {
	var n notFoundError
	return errors.As(err, &n)
}

// InvalidTransitionError is returned when a (state, action) pair is
// absent from the closed transition table.
type InvalidTransitionError struct {
	DocumentID string
	From       string
	Action     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf(
		"invalid transition: action %q is not allowed from status %q (document %s)",
		e.Action, e.From, e.DocumentID)
}

func (e *InvalidTransitionError) isValidationError() {}

// MissingWorkflowTypeError is returned when a transition requires a
// workflow whose type is not registered in the configuration registry.
type MissingWorkflowTypeError struct {
	WorkflowType string
}

func (e *MissingWorkflowTypeError) Error() string {
	return fmt.Sprintf("workflow type %q is not registered", e.WorkflowType)
}

func (e *MissingWorkflowTypeError) isValidationError() {}

// SelfDependencyError is returned when a dependency edge would point a
// family at itself, including across versions of the same family.
type SelfDependencyError struct {
	FromDocumentID string
	ToDocumentID   string
	FamilyID       string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf(
		"document %s cannot depend on %s: both belong to family %s",
		e.FromDocumentID, e.ToDocumentID, e.FamilyID)
}

func (e *SelfDependencyError) isValidationError() {}

// NonEffectiveVersioningError is returned when version creation is
// attempted from a document that is not EFFECTIVE.
type NonEffectiveVersioningError struct {
	DocumentID string
	Status     string
}

func (e *NonEffectiveVersioningError) Error() string {
	return fmt.Sprintf(
		"cannot create a version from document %s with status %q: source must be EFFECTIVE",
		e.DocumentID, e.Status)
}

func (e *NonEffectiveVersioningError) isValidationError() {}

// CircularDependencyError carries the family-level cycle that the
// rejected edge would have completed. CyclePath starts and ends with
// the same family id.
type CircularDependencyError struct {
	CyclePath []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.CyclePath, " -> "))
}

func (e *CircularDependencyError) isConflictError() {}

// ConcurrentModificationError is returned to the losing writer when two
// actors race to advance the same document. The caller should reload
// and retry against fresh state.
type ConcurrentModificationError struct {
	DocumentID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("document %s was modified concurrently", e.DocumentID)
}

func (e *ConcurrentModificationError) isConflictError() {}

// WorkflowAlreadyActiveError is returned when a second workflow is
// started on a document that already has an active one.
type WorkflowAlreadyActiveError struct {
	DocumentID   string
	WorkflowType string
}

func (e *WorkflowAlreadyActiveError) Error() string {
	return fmt.Sprintf(
		"document %s already has an active %s workflow",
		e.DocumentID, e.WorkflowType)
}

func (e *WorkflowAlreadyActiveError) isConflictError() {}

// BlockingDependent identifies one document that blocks retirement of a
// family, and the exact family version it references.
type BlockingDependent struct {
	DependentID    string
	DependentTitle string
	ThroughVersion string // version string, e.g. "01.00"
	ThroughID      string // id of the referenced version
}

// BlockingDependentsError is returned when a family cannot be retired
// because at least one version, including superseded ones, still has an
// active dependent.
type BlockingDependentsError struct {
	FamilyID   string
	Dependents []BlockingDependent
}

func (e *BlockingDependentsError) Error() string {
	parts := make([]string, len(e.Dependents))
	for i, d := range e.Dependents {
		parts[i] = fmt.Sprintf("%s (via version %s)", d.DependentID, d.ThroughVersion)
	}
	return fmt.Sprintf(
		"family %s cannot be obsoleted: blocked by %s",
		e.FamilyID, strings.Join(parts, ", "))
}

func (e *BlockingDependentsError) isBlockedError() {}

// NotFoundError is returned for unknown document, family, or edge
// identities.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) isNotFoundError() {}
