package api

import (
	"fmt"
	"time"
)

// State represents the run state enum
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

func (s State) String() string {
	return string(s)
}

func GetState(s string) (State, error) {
	switch s {
	case string(StatePending):
		return StatePending, nil
	case string(StateRunning):
		return StateRunning, nil
	case string(StateCompleted):
		return StateCompleted, nil
	case string(StateFailed):
		return StateFailed, nil
	default:
		return State(s), fmt.Errorf("invalid run state: %s", s)
	}
}

// Run is one evaluation run of an experiment. Runs are created by the evaluation system,
// this client only reads and deletes them.
type Run struct {
	ID               string         `json:"id" validate:"required"`
	ExperimentID     string         `json:"experiment_id" validate:"required"`
	DatasetVersionID *string        `json:"dataset_version_id,omitempty"`
	GitCommit        *string        `json:"git_commit,omitempty"`
	Hyperparameters  map[string]any `json:"hyperparameters,omitempty"`
	Status           State          `json:"status" validate:"required,oneof=pending running completed failed"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (r Run) GetID() string    { return r.ID }
func (r Run) ParentID() string { return r.ExperimentID }
func (r Run) SortKey() int64   { return r.CreatedAt.UnixMilli() }

// Duration returns how long the run took, zero while it has not finished.
func (r Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// MetricData is the score of one metric for one test result.
type MetricData struct {
	Name            string   `json:"name" validate:"required"`
	Score           float64  `json:"score"`
	Success         bool     `json:"success"`
	Threshold       *float64 `json:"threshold,omitempty"`
	EvaluationModel *string  `json:"evaluation_model,omitempty"`
	Reason          *string  `json:"reason,omitempty"`
	VerboseLogs     *string  `json:"verbose_logs,omitempty"`
	EvaluationCost  *float64 `json:"evaluation_cost,omitempty"`
	StrictMode      *bool    `json:"strict_mode,omitempty"`
}

// TestResult is the outcome of one test case within a run.
type TestResult struct {
	ID           string       `json:"id" validate:"required"`
	RunID        string       `json:"run_id" validate:"required"`
	TestCaseID   string       `json:"test_case_id" validate:"required"`
	ActualOutput string       `json:"actual_output"`
	Success      bool         `json:"success"`
	MetricsData  []MetricData `json:"metrics_data,omitempty" validate:"omitempty,dive"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (r TestResult) GetID() string    { return r.ID }
func (r TestResult) ParentID() string { return r.RunID }
func (r TestResult) SortKey() int64   { return r.CreatedAt.UnixMilli() }

// MetricSummary aggregates one metric across the results of a run.
type MetricSummary struct {
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
	PassRate     float64 `json:"pass_rate"`
	TotalCost    float64 `json:"total_cost,omitempty"`
}
