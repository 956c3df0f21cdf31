package managers

import (
	"slices"
	"strings"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// TestResultManager reads the results of runs. Results are read only.
type TestResultManager struct {
	client  *evalclient.Client
	results *resource[api.TestResult]
}

func NewTestResultManager(opts Options) *TestResultManager {
	return &TestResultManager{
		client:  opts.Client,
		results: newResource[api.TestResult](EntityTestResult, abstractions.TableTestResults, opts),
	}
}

func (m *TestResultManager) ListByRun(ctx *executioncontext.ExecutionContext, runID string) ([]api.TestResult, error) {
	return m.results.list(ctx, runID, func() ([]api.TestResult, error) {
		return m.client.ListTestResults(ctx, runID)
	})
}

func (m *TestResultManager) cachedKeys(ctx *executioncontext.ExecutionContext, runID string) []abstractions.Key {
	results := m.results.cachedList(ctx, abstractions.Query{Parent: runID})
	keys := make([]abstractions.Key, 0, len(results))
	for _, result := range results {
		keys = append(keys, m.results.table.Key(result.ID))
	}
	return keys
}

// SummarizeMetrics aggregates every metric over the results, ordered by metric name.
func SummarizeMetrics(results []api.TestResult) []api.MetricSummary {
	type totals struct {
		count, passed int
		score, cost   float64
	}
	byName := map[string]*totals{}
	for _, result := range results {
		for _, metric := range result.MetricsData {
			t, ok := byName[metric.Name]
			if !ok {
				t = &totals{}
				byName[metric.Name] = t
			}
			t.count++
			t.score += metric.Score
			if metric.Success {
				t.passed++
			}
			if metric.EvaluationCost != nil {
				t.cost += *metric.EvaluationCost
			}
		}
	}

	summaries := make([]api.MetricSummary, 0, len(byName))
	for name, t := range byName {
		summaries = append(summaries, api.MetricSummary{
			Name:         name,
			Count:        t.count,
			AverageScore: t.score / float64(t.count),
			PassRate:     float64(t.passed) / float64(t.count),
			TotalCost:    t.cost,
		})
	}
	slices.SortFunc(summaries, func(a, b api.MetricSummary) int {
		return strings.Compare(a.Name, b.Name)
	})
	return summaries
}

// PassRate is the share of successful results, 0 for no results.
func PassRate(results []api.TestResult) float64 {
	if len(results) == 0 {
		return 0
	}
	passed := 0
	for _, result := range results {
		if result.Success {
			passed++
		}
	}
	return float64(passed) / float64(len(results))
}
