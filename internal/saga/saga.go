package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Step is a single unit of a saga with an execute action and an optional
// compensating action.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs steps in order and, when one fails, compensates the already
// executed steps in reverse order. Compensation failures are logged but do
// not stop the unwind.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// New creates a saga with the given name.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{name: name, logger: logger}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step Step) {
	s.steps = append(s.steps, step)
}

// Execute runs all steps. On failure it unwinds executed steps and returns
// an error naming the failed step.
func (s *Saga) Execute(ctx context.Context) error {
	executed := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		s.logger.Debug("executing saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)

		if err := step.Execute(ctx); err != nil {
			s.logger.Warn("saga step failed, compensating",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			s.unwind(ctx, executed)
			return fmt.Errorf("saga %q failed at step %q: %w", s.name, step.Name, err)
		}

		executed = append(executed, step)
	}

	return nil
}

func (s *Saga) unwind(ctx context.Context, executed []Step) {
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}
