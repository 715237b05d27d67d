package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"reqflow/internal/logging"
	"reqflow/internal/stage"
	"reqflow/internal/state"
)

// Middleware wraps a stage function. It is applied once per step when the
// orchestrator is built.
type Middleware func(step state.Step, next stage.Func) stage.Func

// chain applies middlewares so that the first one listed runs outermost.
func chain(step state.Step, fn stage.Func, mws []Middleware) stage.Func {
	for i := len(mws) - 1; i >= 0; i-- {
		fn = mws[i](step, fn)
	}
	return fn
}

// WithLogging logs entry to and exit from every step. A logger stored in the
// context with [logging.WithLogger] takes precedence over logger.
func WithLogging(logger *zap.Logger) Middleware {
	return func(step state.Step, next stage.Func) stage.Func {
		return func(ctx context.Context, st *state.WorkflowState) stage.Result {
			log := logging.LoggerFrom(ctx, logger).With(
				zap.String("step", string(step)),
				zap.String("workflow_id", st.ID),
			)
			log.Info("step started")
			res := next(ctx, st)
			log.Info("step finished",
				zap.String("result", res.Kind.String()),
				zap.String("next_step", string(st.NextStep)),
			)
			return res
		}
	}
}

// WithTiming records how long every step took at debug level.
func WithTiming(logger *zap.Logger) Middleware {
	return func(step state.Step, next stage.Func) stage.Func {
		return func(ctx context.Context, st *state.WorkflowState) stage.Result {
			start := time.Now()
			res := next(ctx, st)
			logging.LoggerFrom(ctx, logger).Debug("step timing",
				zap.String("step", string(step)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return res
		}
	}
}
