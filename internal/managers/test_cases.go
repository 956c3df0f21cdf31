package managers

import (
	validator "github.com/go-playground/validator/v10"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	"github.com/eval-hub/eval-dashboard/internal/serialization"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

type TestCaseManager struct {
	opts      Options
	client    *evalclient.Client
	validate  *validator.Validate
	testCases *resource[api.TestCase]
}

func NewTestCaseManager(opts Options) *TestCaseManager {
	return &TestCaseManager{
		opts:      opts,
		client:    opts.Client,
		validate:  opts.Client.Validator(),
		testCases: newResource[api.TestCase](EntityTestCase, abstractions.TableTestCases, opts),
	}
}

func (m *TestCaseManager) List(ctx *executioncontext.ExecutionContext) ([]api.TestCase, error) {
	return m.testCases.list(ctx, "", func() ([]api.TestCase, error) {
		return m.client.ListTestCases(ctx)
	})
}

func (m *TestCaseManager) GetByID(ctx *executioncontext.ExecutionContext, id string) (*api.TestCase, error) {
	return m.testCases.get(ctx, id, func() (*api.TestCase, error) {
		return m.client.GetTestCase(ctx, id)
	})
}

func (m *TestCaseManager) Create(ctx *executioncontext.ExecutionContext, config *api.TestCaseConfig) (*api.TestCase, error) {
	if err := serialization.ValidateRequest(m.validate, ctx, config); err != nil {
		return nil, err
	}
	now := m.opts.now()
	provisional := api.TestCase{
		ID:                 api.NewTemporaryID(),
		Name:               config.Name,
		Type:               config.Type,
		Input:              config.Input,
		ExpectedOutput:     config.ExpectedOutput,
		Context:            config.Context,
		RetrievalContext:   config.RetrievalContext,
		AdditionalMetadata: config.AdditionalMetadata,
		IsGlobal:           config.IsGlobal,
		UserID:             api.PendingUserID,
		Timestamps:         api.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	return m.testCases.create(ctx, provisional, func() (*api.TestCase, error) {
		return m.client.CreateTestCase(ctx, config)
	})
}

func (m *TestCaseManager) Update(ctx *executioncontext.ExecutionContext, id string, patch *api.TestCasePatch) (*api.TestCase, error) {
	if err := serialization.ValidateRequest(m.validate, ctx, patch); err != nil {
		return nil, err
	}
	return m.testCases.update(ctx, id, patch, func() (*api.TestCase, error) {
		return m.client.UpdateTestCase(ctx, id, patch)
	})
}

// Delete refuses to delete a global test case unless the user is an administrator. The
// check runs before any request: the cached test case is used when there is one.
func (m *TestCaseManager) Delete(ctx *executioncontext.ExecutionContext, id string) error {
	testCase := m.testCases.cached(ctx, id)
	if testCase == nil && !api.IsTemporaryID(id) {
		loaded, err := m.GetByID(ctx, id)
		if err != nil {
			return err
		}
		testCase = loaded
	}
	if testCase != nil {
		if err := m.checkDeletable(ctx, testCase); err != nil {
			return err
		}
	}
	return m.testCases.remove(ctx, id, func() error {
		return m.client.DeleteTestCase(ctx, id)
	})
}

// DeleteTestCase is Delete for a test case the caller already holds.
func (m *TestCaseManager) DeleteTestCase(ctx *executioncontext.ExecutionContext, testCase *api.TestCase) error {
	if err := m.checkDeletable(ctx, testCase); err != nil {
		return err
	}
	return m.testCases.remove(ctx, testCase.ID, func() error {
		return m.client.DeleteTestCase(ctx, testCase.ID)
	})
}

func (m *TestCaseManager) checkDeletable(ctx *executioncontext.ExecutionContext, testCase *api.TestCase) error {
	if !testCase.IsGlobal || (m.opts.Users != nil && m.opts.Users.IsAdmin()) {
		return nil
	}
	ctx.Logger.Info("Refused to delete a global test case", constants.LOG_ENTITY, EntityTestCase, constants.LOG_ID, testCase.ID)
	cause := se.NewServiceError(messages.GlobalTestCaseDeletion, "ResourceId", testCase.ID)
	return se.NewBusinessRuleError("delete", EntityTestCase, testCase.ID, cause.Error(), cause)
}
