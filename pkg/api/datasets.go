package api

import "time"

// Dataset is a named, versioned collection of test cases.
type Dataset struct {
	ID               string  `json:"id" validate:"required"`
	Name             string  `json:"name" validate:"required"`
	Description      *string `json:"description,omitempty"`
	IsGlobal         bool    `json:"is_global"`
	UserID           string  `json:"user_id"`
	CurrentVersionID *string `json:"current_version_id,omitempty"`
	Timestamps
}

func (d Dataset) GetID() string    { return d.ID }
func (d Dataset) ParentID() string { return "" }
func (d Dataset) SortKey() int64   { return d.CreatedAt.UnixMilli() }

// DatasetConfig is the request to create a dataset.
type DatasetConfig struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description,omitempty"`
	IsGlobal    bool    `json:"is_global"`
}

// DatasetPatch is a partial update of a dataset, only the non nil fields are changed.
// A Null description removes it.
type DatasetPatch struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description Nullable[string] `json:"description,omitzero"`
	IsGlobal    *bool            `json:"is_global,omitempty"`
}

// DatasetVersion is an immutable, numbered snapshot of the test cases of a dataset.
type DatasetVersion struct {
	ID              string    `json:"id" validate:"required"`
	DatasetID       string    `json:"dataset_id" validate:"required"`
	VersionNumber   int       `json:"version_number" validate:"gte=1"`
	TestCaseIDs     []string  `json:"test_case_ids"`
	ChangeSummary   *string   `json:"change_summary,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedByUserID string    `json:"created_by_user_id"`
}

func (v DatasetVersion) GetID() string    { return v.ID }
func (v DatasetVersion) ParentID() string { return v.DatasetID }
func (v DatasetVersion) SortKey() int64   { return int64(v.VersionNumber) }

// DatasetVersionConfig is the request to snapshot the membership of a dataset.
type DatasetVersionConfig struct {
	TestCaseIDs   []string `json:"test_case_ids" validate:"required,dive,required"`
	ChangeSummary *string  `json:"change_summary,omitempty"`
}
