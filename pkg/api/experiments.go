package api

// Experiment groups the evaluation runs of one line of work.
type Experiment struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	UserID      string  `json:"user_id"`
	Timestamps
}

func (e Experiment) GetID() string    { return e.ID }
func (e Experiment) ParentID() string { return "" }
func (e Experiment) SortKey() int64   { return e.CreatedAt.UnixMilli() }

// ExperimentConfig is the request to create an experiment.
type ExperimentConfig struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description,omitempty"`
}

// ExperimentPatch is a partial update of an experiment.
type ExperimentPatch struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description Nullable[string] `json:"description,omitzero"`
}
