package domain

// ModelKind is the category of backend a model routes to.
type ModelKind string

// Model kinds.
const (
	KindText    ModelKind = "text"
	KindImage   ModelKind = "image"
	KindPersona ModelKind = "persona"
)

// ModelSpec describes a selectable completion backend.
type ModelSpec struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Provider    string    `json:"provider" yaml:"provider"`
	Kind        ModelKind `json:"kind" yaml:"kind"`
	Description string    `json:"description,omitempty" yaml:"description"`
}

// IsImage reports whether requests to this model produce images.
func (m ModelSpec) IsImage() bool {
	return m.Kind == KindImage
}
