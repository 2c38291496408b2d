package saga

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func successStep(name string, outcome interface{}, log *[]string) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context) (interface{}, error) {
			*log = append(*log, "execute:"+name)
			return outcome, nil
		},
		Compensate: func(ctx context.Context) error {
			*log = append(*log, "compensate:"+name)
			return nil
		},
	}
}

func failingStep(name string, err error, log *[]string) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context) (interface{}, error) {
			*log = append(*log, "execute:"+name)
			return nil, err
		},
		Compensate: func(ctx context.Context) error {
			*log = append(*log, "compensate:"+name)
			return nil
		},
	}
}

func TestExecutor_AllStepsSucceed(t *testing.T) {
	var log []string

	executor := New([]Step{
		successStep("validate", "ok-1", &log),
		successStep("reserve", "ok-2", &log),
		successStep("charge", "ok-3", &log),
	}, Listener{})

	result := executor.Execute(context.Background())

	require.True(t, result.Success)
	require.NoError(t, result.Err)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, []string{"validate", "reserve", "charge"}, result.StepNames())
	assert.Equal(t, "ok-2", result.Steps[1].Outcome)
	assert.Equal(t, []string{"execute:validate", "execute:reserve", "execute:charge"}, log)
	assert.Equal(t, StateCompleted, executor.State())
}

func TestExecutor_FailureCompensatesInReverseOrder(t *testing.T) {
	var log []string
	stepErr := errors.New("charge declined")

	executor := New([]Step{
		successStep("validate", nil, &log),
		successStep("reserve", nil, &log),
		failingStep("charge", stepErr, &log),
		successStep("notify", nil, &log),
	}, Listener{})

	result := executor.Execute(context.Background())

	require.False(t, result.Success)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, stepErr)

	// Trace covers attempted steps only; the last entry carries the error.
	require.Len(t, result.Steps, 3)
	assert.Equal(t, []string{"validate", "reserve", "charge"}, result.StepNames())
	assert.ErrorIs(t, result.Steps[2].Err, stepErr)

	// notify was never started, charge is never compensated, and the
	// completed steps unwind in exact reverse order.
	assert.Equal(t, []string{
		"execute:validate",
		"execute:reserve",
		"execute:charge",
		"compensate:reserve",
		"compensate:validate",
	}, log)
	assert.Equal(t, StateCompensated, executor.State())
}

func TestExecutor_CompensationFailureDoesNotStopWalk(t *testing.T) {
	var log []string

	step1 := successStep("one", nil, &log)
	step2 := Step{
		Name: "two",
		Execute: func(ctx context.Context) (interface{}, error) {
			log = append(log, "execute:two")
			return nil, nil
		},
		Compensate: func(ctx context.Context) error {
			log = append(log, "compensate:two")
			return errors.New("release failed")
		},
	}
	step3 := failingStep("three", errors.New("boom"), &log)

	var compensationErrs []error
	executor := New([]Step{step1, step2, step3}, Listener{
		CompensationFinished: func(name string, err error) {
			compensationErrs = append(compensationErrs, err)
		},
	})

	result := executor.Execute(context.Background())

	require.False(t, result.Success)
	// Step one still gets its attempt after step two's compensate fails.
	assert.Equal(t, []string{
		"execute:one",
		"execute:two",
		"execute:three",
		"compensate:two",
		"compensate:one",
	}, log)
	require.Len(t, compensationErrs, 2)
	assert.Error(t, compensationErrs[0])
	assert.NoError(t, compensationErrs[1])
}

func TestExecutor_ListenerLifecycle(t *testing.T) {
	var calls []string

	executor := New([]Step{
		{
			Name: "ok",
			Execute: func(ctx context.Context) (interface{}, error) {
				return "done", nil
			},
			Compensate: func(ctx context.Context) error { return nil },
		},
		{
			Name: "bad",
			Execute: func(ctx context.Context) (interface{}, error) {
				return nil, errors.New("bad step")
			},
		},
	}, Listener{
		StepStarted:          func(name string) { calls = append(calls, "started:"+name) },
		StepCompleted:        func(name string, _ interface{}) { calls = append(calls, "completed:"+name) },
		SagaFailed:           func(name string, _ error) { calls = append(calls, "failed:"+name) },
		CompensationStarted:  func(name string) { calls = append(calls, "comp-started:"+name) },
		CompensationFinished: func(name string, _ error) { calls = append(calls, "comp-finished:"+name) },
	})

	executor.Execute(context.Background())

	assert.Equal(t, []string{
		"started:ok",
		"completed:ok",
		"started:bad",
		"failed:bad",
		"comp-started:ok",
		"comp-finished:ok",
	}, calls)
}

func TestExecutor_ResetClearsPriorRun(t *testing.T) {
	var log []string

	executor := NewExecutor(Listener{})
	require.NoError(t, executor.AddStep(successStep("a", nil, &log)))
	require.NoError(t, executor.AddStep(failingStep("b", errors.New("fail"), &log)))

	first := executor.Execute(context.Background())
	require.False(t, first.Success)
	assert.Equal(t, StateCompensated, executor.State())

	require.NoError(t, executor.Reset())
	assert.Equal(t, StateIdle, executor.State())

	// Re-add the same steps: the result shape matches a fresh instance,
	// with no executed records leaking from the prior run.
	log = nil
	require.NoError(t, executor.AddStep(successStep("a", nil, &log)))
	require.NoError(t, executor.AddStep(successStep("b", nil, &log)))

	second := executor.Execute(context.Background())
	require.True(t, second.Success)
	require.Len(t, second.Steps, 2)
	assert.Equal(t, []string{"execute:a", "execute:b"}, log)
}

func TestExecutor_SingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	executor := New([]Step{
		{
			Name: "slow",
			Execute: func(ctx context.Context) (interface{}, error) {
				close(started)
				<-release
				return nil, nil
			},
		},
	}, Listener{})

	var wg sync.WaitGroup
	wg.Add(1)
	var first Result
	go func() {
		defer wg.Done()
		first = executor.Execute(context.Background())
	}()

	<-started
	second := executor.Execute(context.Background())
	assert.False(t, second.Success)
	assert.ErrorIs(t, second.Err, ErrExecutionInProgress)
	assert.ErrorIs(t, executor.AddStep(Step{Name: "late"}), ErrExecutionInProgress)
	assert.ErrorIs(t, executor.Reset(), ErrExecutionInProgress)

	close(release)
	wg.Wait()
	assert.True(t, first.Success)
}
