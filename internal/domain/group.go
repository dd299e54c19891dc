package domain

// Group is a named collection of manifests inside a project. Only the
// fields this subsystem reads are modeled; the project default model id is
// resolved through the project relation by the store.
type Group struct {
	// ID is the group's unique identifier
	ID int64

	// ProjectID is the owning project's identifier
	ProjectID int64

	// Name is the group's display name
	Name string

	// ProjectLLMModelID is the owning project's default model id, if any
	ProjectLLMModelID *string
}
