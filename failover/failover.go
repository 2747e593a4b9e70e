// Package failover verifies that a process instance keeps its state and
// variables when the Kie Server pods running it are forcibly deleted and
// rescheduled.
//
// The scenario starts the long script process, fires its first signal
// asynchronously and kills every Kie Server pod while the script runs.
// Whether that signal got through is not asserted; only the state observed
// after the deployment recovers is.
package failover

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework/concurrent"
	"github.com/kiegroup/kie-cloud-tests/test/framework/config"
	"github.com/kiegroup/kie-cloud-tests/test/framework/deployment"
	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
)

// ProcessClient drives process instances
type ProcessClient interface {
	StartProcess(ctx context.Context, containerID, processID string, variables map[string]interface{}) (int64, error)
	SignalProcessInstance(ctx context.Context, containerID string, pid int64, signal string, event interface{}) error
	GetProcessInstance(ctx context.Context, containerID string, pid int64) (*model.ProcessInstance, error)
	GetProcessInstanceVariables(ctx context.Context, containerID string, pid int64) (map[string]interface{}, error)
}

// QueryClient searches process instances
type QueryClient interface {
	FindProcessInstances(ctx context.Context, page, pageSize int) ([]model.ProcessInstance, error)
}

// ServerClient reads the Kie Server identity and container state
type ServerClient interface {
	GetServerInfo(ctx context.Context) (*model.KieServerInfo, error)
	WaitForContainerStart(ctx context.Context, containerID string, timeout, interval time.Duration) error
}

// KieServer is a client implementing every Kie Server API the scenario uses
type KieServer interface {
	ProcessClient
	QueryClient
	ServerClient
}

// ControllerClient registers containers on a server template
type ControllerClient interface {
	SaveContainerSpec(ctx context.Context, serverID, serverName, containerID, alias string, release model.ReleaseID, status model.KieContainerStatus) (*model.ContainerSpec, error)
}

// Deployment is the Kie Server workload the scenario disrupts
type Deployment interface {
	Instances(ctx context.Context) ([]deployment.Instance, error)
	DeleteInstances(ctx context.Context) error
	WaitForInstancesGone(ctx context.Context, names []string) error
	WaitForScale(ctx context.Context) error
}

// Fixtures are the identifiers of the deployed definition project
type Fixtures struct {
	ContainerID    string
	ContainerAlias string
	Release        model.ReleaseID
	ProcessID      string
	SignalName     string
	Signal2Name    string
	VariableName   string
	FirstValue     string
	SecondValue    string
	// VariableCount is the number of variables the process holds
	VariableCount int
}

// DefaultFixtures returns the fixtures of the definition project Kjar
func DefaultFixtures() Fixtures {
	return Fixtures{
		ContainerID:    model.ContainerID,
		ContainerAlias: model.ContainerAlias,
		Release:        model.DefinitionProject,
		ProcessID:      model.ProcessIDLongScript,
		SignalName:     model.SignalName,
		Signal2Name:    model.Signal2Name,
		VariableName:   "name",
		FirstValue:     "ONE",
		SecondValue:    "TWO",
		VariableCount:  2,
	}
}

// Timeouts bound the waits the scenario owns
type Timeouts struct {
	ContainerStart time.Duration
	ContainerPoll  time.Duration
	SignalJoin     time.Duration
}

// TimeoutsFrom reads the scenario timeouts from the framework configuration
func TimeoutsFrom(cfg *config.Config) Timeouts {
	return Timeouts{
		ContainerStart: cfg.ContainerStartTimeout,
		ContainerPoll:  cfg.ContainerPollInterval,
		SignalJoin:     cfg.SignalJoinTimeout,
	}
}

// Context carries the collaborators and the expectations of one run. A
// Context must not be reused across runs.
type Context struct {
	Process    ProcessClient
	Query      QueryClient
	Server     ServerClient
	Controller ControllerClient
	KieServer  Deployment
	Fixtures   Fixtures
	Timeouts   Timeouts
	Logger     *slog.Logger

	baseline []string
	pid      int64
	signal   *concurrent.Task[SignalResult]
}

// NewContext builds a Context using kie for every Kie Server call
func NewContext(kie KieServer, ctrl ControllerClient, kieServer Deployment, cfg *config.Config, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Process:    kie,
		Query:      kie,
		Server:     kie,
		Controller: ctrl,
		KieServer:  kieServer,
		Fixtures:   DefaultFixtures(),
		Timeouts:   TimeoutsFrom(cfg),
		Logger:     logger,
	}
}

// ProcessInstanceID returns the id of the started process instance, 0 before step 3
func (sc *Context) ProcessInstanceID() int64 {
	return sc.pid
}

// Baseline returns the Kie Server pod names recorded before the failover
func (sc *Context) Baseline() []string {
	return append([]string(nil), sc.baseline...)
}
