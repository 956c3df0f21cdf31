package managers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(t, ctx)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// scenarioContext holds the state of one scenario
type scenarioContext struct {
	t          *testing.T
	f          *fixture
	datasets   map[string]api.Dataset
	versions   map[int]api.DatasetVersion
	testCases  map[string]api.TestCase
	created    *api.DatasetVersion
	comparison *VersionComparison
	requests   int
	lastErr    error
}

func initializeScenario(t *testing.T, ctx *godog.ScenarioContext) {
	sc := &scenarioContext{t: t}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		sc.reset()
		return ctx, nil
	})

	ctx.Step(`^the test cases "([^"]*)" exist$`, sc.theTestCasesExist)
	ctx.Step(`^the dataset "([^"]*)" has version (\d+) with test cases "([^"]*)"$`, sc.theDatasetHasVersion)
	ctx.Step(`^the dataset "([^"]*)" has no version$`, sc.theDatasetHasNoVersion)
	ctx.Step(`^I create a version of "([^"]*)" with test cases "([^"]*)"$`, sc.iCreateAVersion)
	ctx.Step(`^the new version number should be (\d+)$`, sc.theNewVersionNumberShouldBe)
	ctx.Step(`^the current version of "([^"]*)" should be the new version$`, sc.theCurrentVersionShouldBeTheNewVersion)
	ctx.Step(`^I compare version (\d+) with the new version$`, sc.iCompareWithTheNewVersion)
	ctx.Step(`^the (added|removed|unchanged) test cases should be "([^"]*)"$`, sc.theComparedTestCasesShouldBe)

	ctx.Step(`^a (global|private) test case "([^"]*)"$`, sc.aTestCase)
	ctx.Step(`^I delete the test case "([^"]*)"$`, sc.iDeleteTheTestCase)
	ctx.Step(`^the deletion should fail with "([^"]*)"$`, sc.theDeletionShouldFailWith)
	ctx.Step(`^the deletion should succeed$`, sc.theDeletionShouldSucceed)
	ctx.Step(`^no request should have been sent$`, sc.noRequestShouldHaveBeenSent)
	ctx.Step(`^the test case "([^"]*)" should still exist$`, sc.theTestCaseShouldStillExist)
	ctx.Step(`^the test case "([^"]*)" should not exist$`, sc.theTestCaseShouldNotExist)
}

func (sc *scenarioContext) reset() {
	sc.f = newFixture(sc.t)
	sc.datasets = map[string]api.Dataset{}
	sc.versions = map[int]api.DatasetVersion{}
	sc.testCases = map[string]api.TestCase{}
	sc.created = nil
	sc.comparison = nil
	sc.requests = 0
	sc.lastErr = nil
}

func splitNames(list string) []string {
	var names []string
	for name := range strings.SplitSeq(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (sc *scenarioContext) ids(list string) ([]string, error) {
	var ids []string
	for _, name := range splitNames(list) {
		tc, ok := sc.testCases[name]
		if !ok {
			return nil, fmt.Errorf("unknown test case %q", name)
		}
		ids = append(ids, tc.ID)
	}
	return ids, nil
}

func (sc *scenarioContext) names(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		for name, tc := range sc.testCases {
			if tc.ID == id {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

func (sc *scenarioContext) theTestCasesExist(list string) error {
	for _, name := range splitNames(list) {
		sc.testCases[name] = sc.f.server.PutTestCase(api.TestCase{
			Name:  name,
			Type:  api.TestCaseTypeLLM,
			Input: api.TestCaseInput{Text: "question " + name},
		})
	}
	return nil
}

func (sc *scenarioContext) theDatasetHasVersion(name string, number int, list string) error {
	ids, err := sc.ids(list)
	if err != nil {
		return err
	}
	ds := sc.f.server.PutDataset(api.Dataset{Name: name})
	for n := 1; n <= number; n++ {
		sc.versions[n] = sc.f.server.PutVersion(api.DatasetVersion{DatasetID: ds.ID, VersionNumber: n, TestCaseIDs: ids})
	}
	sc.f.server.SetMembers(ds.ID, ids...)
	sc.datasets[name] = ds
	return nil
}

func (sc *scenarioContext) theDatasetHasNoVersion(name string) error {
	sc.datasets[name] = sc.f.server.PutDataset(api.Dataset{Name: name})
	return nil
}

func (sc *scenarioContext) iCreateAVersion(name string, list string) error {
	ids, err := sc.ids(list)
	if err != nil {
		return err
	}
	ds, ok := sc.datasets[name]
	if !ok {
		return fmt.Errorf("unknown dataset %q", name)
	}
	sc.created, err = sc.f.DatasetVersions.Create(newContext(), ds.ID, &api.DatasetVersionConfig{TestCaseIDs: ids})
	return err
}

func (sc *scenarioContext) theNewVersionNumberShouldBe(number int) error {
	if sc.created == nil {
		return errors.New("no version was created")
	}
	if sc.created.VersionNumber != number {
		return fmt.Errorf("expected version %d, got %d", number, sc.created.VersionNumber)
	}
	return nil
}

func (sc *scenarioContext) theCurrentVersionShouldBeTheNewVersion(name string) error {
	ds, err := sc.f.Datasets.GetByID(newContext(), sc.datasets[name].ID)
	if err != nil {
		return err
	}
	if ds.CurrentVersionID == nil || *ds.CurrentVersionID != sc.created.ID {
		return fmt.Errorf("expected the current version of %q to be %s, got %v", name, sc.created.ID, ds.CurrentVersionID)
	}
	return nil
}

func (sc *scenarioContext) iCompareWithTheNewVersion(number int) error {
	source, ok := sc.versions[number]
	if !ok {
		return fmt.Errorf("unknown version %d", number)
	}
	var err error
	sc.comparison, err = sc.f.DatasetVersions.Compare(newContext(), source.ID, sc.created.ID)
	return err
}

func (sc *scenarioContext) theComparedTestCasesShouldBe(kind string, list string) error {
	if sc.comparison == nil {
		return errors.New("no comparison was made")
	}
	var got []string
	switch kind {
	case "added":
		got = sc.names(sc.comparison.Added)
	case "removed":
		got = sc.names(sc.comparison.Removed)
	default:
		got = sc.names(sc.comparison.Unchanged)
	}
	want := splitNames(list)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return fmt.Errorf("expected %s test cases %v, got %v", kind, want, got)
	}
	return nil
}

func (sc *scenarioContext) aTestCase(scope string, name string) error {
	sc.testCases[name] = sc.f.server.PutTestCase(api.TestCase{
		Name:     name,
		Type:     api.TestCaseTypeLLM,
		Input:    api.TestCaseInput{Text: "hello"},
		IsGlobal: scope == "global",
	})
	return nil
}

func (sc *scenarioContext) iDeleteTheTestCase(name string) error {
	tc, ok := sc.testCases[name]
	if !ok {
		return fmt.Errorf("unknown test case %q", name)
	}
	sc.requests = sc.f.server.RequestCount()
	sc.lastErr = sc.f.TestCases.DeleteTestCase(newContext(), &tc)
	return nil
}

func (sc *scenarioContext) theDeletionShouldFailWith(text string) error {
	if sc.lastErr == nil {
		return errors.New("expected the deletion to fail")
	}
	if !strings.Contains(sc.lastErr.Error(), text) {
		return fmt.Errorf("expected the error to contain %q, got %q", text, sc.lastErr.Error())
	}
	return nil
}

func (sc *scenarioContext) theDeletionShouldSucceed() error {
	return sc.lastErr
}

func (sc *scenarioContext) noRequestShouldHaveBeenSent() error {
	if n := sc.f.server.RequestCount() - sc.requests; n != 0 {
		return fmt.Errorf("expected no request, %d were sent", n)
	}
	return nil
}

func (sc *scenarioContext) theTestCaseShouldStillExist(name string) error {
	_, err := sc.f.TestCases.GetByID(newContext(), sc.testCases[name].ID)
	return err
}

func (sc *scenarioContext) theTestCaseShouldNotExist(name string) error {
	_, err := sc.f.TestCases.GetByID(newContext(), sc.testCases[name].ID)
	if !evalclient.IsNotFound(err) {
		return fmt.Errorf("expected %q to be gone, got %v", name, err)
	}
	return nil
}
