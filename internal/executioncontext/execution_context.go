package executioncontext

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eval-hub/eval-dashboard/internal/constants"
)

// ExecutionContext contains the execution context of one caller action. Managers and the
// API client receive an ExecutionContext instead of a raw context so that every cache
// access and network call of the action shares the same logger and request ID.
//
// The ExecutionContext contains:
//   - Ctx: the caller's context, used for cancellation of store and network calls
//   - RequestID: sent as X-Request-ID on every API request of the action
//   - Logger: a logger enriched with the request ID
type ExecutionContext struct {
	Ctx       context.Context
	RequestID string
	Logger    *slog.Logger
	StartedAt time.Time
}

func NewExecutionContext(ctx context.Context, requestID string, logger *slog.Logger) *ExecutionContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionContext{
		Ctx:       ctx,
		RequestID: requestID,
		Logger:    logger.With(constants.LOG_REQUEST_ID, requestID),
		StartedAt: time.Now(),
	}
}

// WithContext returns a copy that uses ctx, keeping the logger and request ID.
func (e *ExecutionContext) WithContext(ctx context.Context) *ExecutionContext {
	c := *e
	c.Ctx = ctx
	return &c
}
