package workflow

import (
	"sort"

	"github.com/compliance-forge/docuflow/pkg/models"
)

// Registry holds the workflow types enabled for this deployment. It is
// built from configuration and injected into the state machine, so
// tests can supply isolated fixtures; there is no module-level global.
type Registry struct {
	enabled map[models.WorkflowType]bool
}

// NewRegistry creates a registry with the given workflow types enabled.
// Unknown type names are ignored by the config loader before this is
// called.
func NewRegistry(types ...models.WorkflowType) *Registry {
	enabled := make(map[models.WorkflowType]bool, len(types))
	for _, t := range types {
		if t.IsValid() {
			enabled[t] = true
		}
	}
	return &Registry{enabled: enabled}
}

// DefaultRegistry enables every known workflow type.
func DefaultRegistry() *Registry {
	return NewRegistry(
		models.WorkflowReview,
		models.WorkflowApproval,
		models.WorkflowUpVersion,
		models.WorkflowObsolete,
	)
}

// Enabled reports whether the workflow type is registered.
func (r *Registry) Enabled(t models.WorkflowType) bool {
	return r.enabled[t]
}

// Types returns the registered workflow types in stable order.
func (r *Registry) Types() []models.WorkflowType {
	out := make([]models.WorkflowType, 0, len(r.enabled))
	for t := range r.enabled {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
