package failover

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiegroup/kie-cloud-tests/test/framework/concurrent"
	"github.com/kiegroup/kie-cloud-tests/test/framework/deployment"
	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
	"github.com/kiegroup/kie-cloud-tests/test/kie/server"
)

// Step is one stage of the scenario
type Step struct {
	Name string
	Run  func(ctx context.Context, sc *Context) error
}

// Steps are executed by Run in this order
var Steps = []Step{
	{Name: "deploy container", Run: deployContainer},
	{Name: "record kie server instances", Run: recordInstances},
	{Name: "start process", Run: startProcess},
	{Name: "verify started process", Run: verifyStarted},
	{Name: "signal during failover", Run: signalAsync},
	{Name: "kill kie server instances", Run: killInstances},
	{Name: "signal out of order", Run: signalOutOfOrder},
	{Name: "signal again", Run: signalAgain},
	{Name: "complete process", Run: completeProcess},
	{Name: "verify instances replaced", Run: verifyReplaced},
}

func deployContainer(ctx context.Context, sc *Context) error {
	f := sc.Fixtures
	info, err := sc.Server.GetServerInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get kie server info: %w", err)
	}

	sc.Logger.Info("deploying container", "server", info.ServerID, "container", f.ContainerID, "release", f.Release.String())
	if _, err := sc.Controller.SaveContainerSpec(ctx, info.ServerID, info.Name, f.ContainerID, f.ContainerAlias, f.Release, model.ContainerStarted); err != nil {
		return fmt.Errorf("failed to save container spec %s: %w", f.ContainerID, err)
	}
	return sc.Server.WaitForContainerStart(ctx, f.ContainerID, sc.Timeouts.ContainerStart, sc.Timeouts.ContainerPoll)
}

func (sc *Context) instanceNames(ctx context.Context) ([]string, error) {
	instances, err := sc.KieServer.Instances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list kie server instances: %w", err)
	}
	return deployment.InstanceNames(instances), nil
}

func recordInstances(ctx context.Context, sc *Context) error {
	names, err := sc.instanceNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return &AssertionError{What: "running kie server instances", Expected: "at least 1", Actual: 0}
	}
	sc.baseline = names
	sc.Logger.Info("recorded kie server instances", "instances", names)
	return nil
}

func startProcess(ctx context.Context, sc *Context) error {
	f := sc.Fixtures
	pid, err := sc.Process.StartProcess(ctx, f.ContainerID, f.ProcessID, nil)
	if err != nil {
		return fmt.Errorf("failed to start process %s: %w", f.ProcessID, err)
	}
	if pid <= 0 {
		return &AssertionError{What: "process instance id", Expected: "a positive id", Actual: pid}
	}
	sc.pid = pid
	sc.Logger.Info("started process", "process", f.ProcessID, "pid", pid)

	instances, err := sc.Query.FindProcessInstances(ctx, 0, 10)
	if err != nil {
		return fmt.Errorf("failed to query process instances: %w", err)
	}
	return assertEqual("number of process instances", 1, len(instances))
}

func verifyStarted(ctx context.Context, sc *Context) error {
	if err := sc.assertState(ctx, model.StateActive); err != nil {
		return err
	}
	return sc.assertVariable(ctx, sc.Fixtures.FirstValue)
}

func signalAsync(ctx context.Context, sc *Context) error {
	f, pid, logger := sc.Fixtures, sc.pid, sc.Logger
	logger.Info("sending signal asynchronously", "signal", f.SignalName, "pid", pid)

	sc.signal = concurrent.Go(ctx, func(ctx context.Context) (SignalResult, error) {
		err := sc.Process.SignalProcessInstance(ctx, f.ContainerID, pid, f.SignalName, nil)
		switch {
		case err == nil:
			return SignalResult{Outcome: SignalDelivered}, nil
		case server.IsRemoteUnavailable(err):
			return SignalResult{Outcome: SignalRemoteUnavailable, Err: err}, nil
		default:
			return SignalResult{Outcome: SignalFailed, Err: err}, nil
		}
	})
	return nil
}

func killInstances(ctx context.Context, sc *Context) error {
	sc.Logger.Info("deleting kie server instances", "instances", sc.baseline)
	if err := sc.KieServer.DeleteInstances(ctx); err != nil {
		return fmt.Errorf("failed to delete kie server instances: %w", err)
	}
	if err := sc.KieServer.WaitForInstancesGone(ctx, sc.baseline); err != nil {
		return err
	}
	return sc.KieServer.WaitForScale(ctx)
}

func (sc *Context) send(ctx context.Context, signal string) error {
	if err := sc.Process.SignalProcessInstance(ctx, sc.Fixtures.ContainerID, sc.pid, signal, nil); err != nil {
		return fmt.Errorf("failed to send %s to process instance %d: %w", signal, sc.pid, err)
	}
	return nil
}

func signalOutOfOrder(ctx context.Context, sc *Context) error {
	if err := sc.send(ctx, sc.Fixtures.Signal2Name); err != nil {
		return err
	}
	if err := sc.assertState(ctx, model.StateActive); err != nil {
		return err
	}
	return sc.assertVariable(ctx, sc.Fixtures.FirstValue)
}

func signalAgain(ctx context.Context, sc *Context) error {
	if err := sc.send(ctx, sc.Fixtures.SignalName); err != nil {
		return err
	}
	if err := sc.assertState(ctx, model.StateActive); err != nil {
		return err
	}
	return sc.assertVariable(ctx, sc.Fixtures.SecondValue)
}

func completeProcess(ctx context.Context, sc *Context) error {
	if err := sc.send(ctx, sc.Fixtures.Signal2Name); err != nil {
		return err
	}
	return sc.assertState(ctx, model.StateCompleted)
}

func verifyReplaced(ctx context.Context, sc *Context) error {
	names, err := sc.instanceNames(ctx)
	if err != nil {
		return err
	}
	sc.Logger.Info("kie server instances after failover", "instances", names)

	old := make(map[string]struct{}, len(sc.baseline))
	for _, name := range sc.baseline {
		old[name] = struct{}{}
	}
	var survivors []string
	for _, name := range names {
		if _, ok := old[name]; ok {
			survivors = append(survivors, name)
		}
	}
	if len(survivors) > 0 {
		return &AssertionError{What: "kie server instances surviving the failover", Expected: "none", Actual: strings.Join(survivors, ", ")}
	}
	return nil
}

func (sc *Context) assertState(ctx context.Context, want model.ProcessInstanceState) error {
	pi, err := sc.Process.GetProcessInstance(ctx, sc.Fixtures.ContainerID, sc.pid)
	if err != nil {
		return fmt.Errorf("failed to get process instance %d: %w", sc.pid, err)
	}
	return assertEqual("process instance state", want, pi.State)
}

func (sc *Context) assertVariable(ctx context.Context, want string) error {
	f := sc.Fixtures
	vars, err := sc.Process.GetProcessInstanceVariables(ctx, f.ContainerID, sc.pid)
	if err != nil {
		return fmt.Errorf("failed to get variables of process instance %d: %w", sc.pid, err)
	}
	if err := assertEqual("number of process variables", f.VariableCount, len(vars)); err != nil {
		return err
	}
	value, ok := vars[f.VariableName]
	if !ok {
		return &AssertionError{What: "process variable " + f.VariableName, Expected: want, Actual: "<unset>"}
	}
	return assertEqual("process variable "+f.VariableName, want, fmt.Sprint(value))
}
