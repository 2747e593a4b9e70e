package failover

import (
	"context"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework/config"
)

// Run executes Steps in order and stops at the first failure, returned as
// a *StepError. The asynchronous signal is joined before Run returns, so
// no goroutine outlives a run by more than Timeouts.SignalJoin.
func Run(ctx context.Context, sc *Context) (*Result, error) {
	result := &Result{}
	var runErr error

	for i, step := range Steps {
		sc.Logger.Info("running step", "step", i+1, "name", step.Name)
		start := time.Now()
		err := step.Run(ctx, sc)
		result.Steps = append(result.Steps, StepResult{
			Step:     i + 1,
			Name:     step.Name,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			sc.Logger.Error("step failed", "step", i+1, "name", step.Name, "error", err)
			runErr = &StepError{Step: i + 1, Name: step.Name, Err: err}
			break
		}
	}

	result.Signal = sc.joinSignal(ctx)
	return result, runErr
}

func (sc *Context) joinSignal(ctx context.Context) SignalResult {
	if sc.signal == nil {
		return SignalResult{Outcome: SignalNotSent}
	}

	timeout := sc.Timeouts.SignalJoin
	if timeout <= 0 {
		timeout = config.DefaultSignalJoinTimeout
	}
	joinCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	res, err := sc.signal.Wait(joinCtx)
	if err != nil {
		sc.Logger.Warn("asynchronous signal still in flight", "timeout", timeout)
		return SignalResult{Outcome: SignalInFlight, Err: err}
	}

	switch res.Outcome {
	case SignalRemoteUnavailable:
		sc.Logger.Info("asynchronous signal rejected during failover", "error", res.Err)
	case SignalFailed:
		sc.Logger.Warn("asynchronous signal failed", "error", res.Err)
	default:
		sc.Logger.Info("asynchronous signal delivered")
	}
	return res
}
