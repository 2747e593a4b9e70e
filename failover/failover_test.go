package failover_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kiegroup/kie-cloud-tests/test/failover"
	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/framework/config"
	"github.com/kiegroup/kie-cloud-tests/test/framework/deployment"
	"github.com/kiegroup/kie-cloud-tests/test/kie/controller"
	"github.com/kiegroup/kie-cloud-tests/test/kie/kietest"
	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
	"github.com/kiegroup/kie-cloud-tests/test/kie/rest"
	"github.com/kiegroup/kie-cloud-tests/test/kie/server"
	"github.com/kiegroup/kie-cloud-tests/test/scenario"
)

// restartedInPlace reports the same pod names before and after a kill
type restartedInPlace struct {
	*kietest.Deployment
	names []deployment.Instance
}

func (r restartedInPlace) Instances(ctx context.Context) ([]deployment.Instance, error) {
	return r.names, nil
}

// firstSignalClient holds back or fails the first delivery of one signal
// and forwards every other call.
type firstSignalClient struct {
	failover.ProcessClient
	signal  string
	err     error
	release chan struct{}
	once    sync.Once
}

func (c *firstSignalClient) SignalProcessInstance(ctx context.Context, containerID string, pid int64, signal string, event interface{}) error {
	first := false
	if signal == c.signal {
		c.once.Do(func() { first = true })
	}
	if !first {
		return c.ProcessClient.SignalProcessInstance(ctx, containerID, pid, signal, event)
	}
	if c.err != nil {
		return c.err
	}
	select {
	case <-c.release:
	case <-ctx.Done():
	}
	return errors.New("signal abandoned")
}

func frameworkConfig() *config.Config {
	return config.Default().
		WithContainerStartTimeout(2 * time.Second).
		WithContainerPollInterval(5 * time.Millisecond).
		WithSignalJoinTimeout(5 * time.Second)
}

func newContext(kie *kietest.Server, d failover.Deployment) *failover.Context {
	cfg := rest.Config{BaseURL: kie.URL(), Username: "yoda", Password: "usetheforce123@", Timeout: 5 * time.Second}
	kieClient, err := server.NewClient(cfg)
	Expect(err).NotTo(HaveOccurred())
	ctrl, err := controller.NewClient(cfg)
	Expect(err).NotTo(HaveOccurred())

	logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
	return failover.NewContext(kieClient, ctrl, d, frameworkConfig(), logger)
}

var _ = Describe("Process failover", func() {
	var (
		ctx context.Context
		kie *kietest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if kie != nil {
			kie.Close()
			kie = nil
		}
	})

	When("the kie server is killed while the long script runs", func() {
		It("keeps the process state and variables", func() {
			kie = kietest.NewServer(kietest.WithReplicas(2))
			d := kietest.NewDeployment(kie, 5*time.Second)
			sc := newContext(kie, d)

			result, err := failover.Run(ctx, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed()).To(BeTrue())
			Expect(result.Steps).To(HaveLen(len(failover.Steps)))

			Expect(result.Signal.Outcome).To(Equal(failover.SignalRemoteUnavailable))
			Expect(server.IsRemoteUnavailable(result.Signal.Err)).To(BeTrue())

			Expect(sc.ProcessInstanceID()).To(BeNumerically(">", 0))
			Expect(d.Deletions()).To(Equal(1))
			Expect(sc.Baseline()).To(HaveLen(2))
			for _, name := range sc.Baseline() {
				Expect(kie.InstanceNames()).NotTo(ContainElement(name))
			}
			Expect(kie.Signals()).To(Equal([]string{
				"1:" + model.SignalName,
				"1:" + model.Signal2Name,
				"1:" + model.SignalName,
				"1:" + model.Signal2Name,
			}))
		})

		It("still releases the container when the run fails", func() {
			kie = kietest.NewServer(kietest.WithBlockingScripts(0))
			d := kietest.NewDeployment(kie, 5*time.Second)
			sc := newContext(kie, d)

			fw, err := framework.New(ctx, "kie-failover",
				framework.WithClients(fake.NewSimpleClientset(), dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())),
				framework.WithConfig(frameworkConfig()))
			Expect(err).NotTo(HaveOccurred())

			settings := scenario.DefaultSettings()
			settings.Namespace = fw.Namespace()
			settings.KieServer.URL = kie.URL()
			settings.Workbench.URL = kie.URL()
			sn, err := scenario.New(fw, settings)
			Expect(err).NotTo(HaveOccurred())
			sn.ReleaseContainer(model.ContainerID)

			_, runErr := failover.Run(ctx, sc)
			Expect(kie.Containers()).To(ConsistOf(model.ContainerID))
			Expect(fw.Cleanup()).To(Succeed())
			Expect(kie.Containers()).To(BeEmpty())

			// The signal finished before the kill, so the process moved on
			// and the out of order signal completed it.
			var stepErr *failover.StepError
			Expect(errors.As(runErr, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(7))

			var assertErr *failover.AssertionError
			Expect(errors.As(runErr, &assertErr)).To(BeTrue())
			Expect(assertErr.Expected).To(Equal(model.StateActive))
			Expect(assertErr.Actual).To(Equal(model.StateCompleted))
		})
	})

	When("the signal sent during the failover does not get through", func() {
		It("passes while the signal is still in flight", func() {
			kie = kietest.NewServer(kietest.WithBlockingScripts(0))
			sc := newContext(kie, kietest.NewDeployment(kie, 10*time.Millisecond))
			sc.Timeouts.SignalJoin = 100 * time.Millisecond

			held := &firstSignalClient{ProcessClient: sc.Process, signal: model.SignalName, release: make(chan struct{})}
			DeferCleanup(func() { close(held.release) })
			sc.Process = held

			result, err := failover.Run(ctx, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed()).To(BeTrue())
			Expect(result.Signal.Outcome).To(Equal(failover.SignalInFlight))
			Expect(result.Signal.Err).To(MatchError(context.DeadlineExceeded))
			Expect(kie.Signals()).To(Equal([]string{
				"1:" + model.Signal2Name,
				"1:" + model.SignalName,
				"1:" + model.Signal2Name,
			}))
		})

		It("passes when the signal fails without reaching the server", func() {
			kie = kietest.NewServer(kietest.WithBlockingScripts(0))
			sc := newContext(kie, kietest.NewDeployment(kie, 10*time.Millisecond))

			rejected := errors.New("event payload rejected")
			sc.Process = &firstSignalClient{ProcessClient: sc.Process, signal: model.SignalName, err: rejected}

			result, err := failover.Run(ctx, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed()).To(BeTrue())
			Expect(result.Signal.Outcome).To(Equal(failover.SignalFailed))
			Expect(result.Signal.Err).To(MatchError(rejected))
			Expect(server.IsRemoteUnavailable(result.Signal.Err)).To(BeFalse())
		})
	})

	When("a collaborator fails", func() {
		It("stops at the deployment that does not recover", func() {
			kie = kietest.NewServer()
			d := kietest.NewDeployment(kie, 5*time.Second)
			d.FailScale(framework.NewTimeoutError(framework.ErrScaleTimeout, "scale myapp-kieserver", time.Minute, "0/1 ready"))
			sc := newContext(kie, d)

			result, err := failover.Run(ctx, sc)
			Expect(err).To(MatchError(framework.ErrScaleTimeout))
			Expect(framework.IsTimeout(err)).To(BeTrue())
			Expect(result.Steps).To(HaveLen(6))
			Expect(result.Passed()).To(BeFalse())
			Expect(result.Signal.Outcome).To(Equal(failover.SignalRemoteUnavailable))
		})

		It("detects pods restarted in place", func() {
			kie = kietest.NewServer()
			inPlace := restartedInPlace{
				Deployment: kietest.NewDeployment(kie, 5*time.Second),
				names:      []deployment.Instance{{Name: "myapp-kieserver-1-abcde"}},
			}
			sc := newContext(kie, inPlace)

			result, err := failover.Run(ctx, sc)
			var stepErr *failover.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(10))
			Expect(err.Error()).To(ContainSubstring("myapp-kieserver-1-abcde"))
			Expect(result.Steps).To(HaveLen(10))
		})

		It("never signals when the container cannot be deployed", func() {
			kie = kietest.NewServer()
			sc := newContext(kie, kietest.NewDeployment(kie, 10*time.Millisecond))
			sc.Fixtures.Release = model.ReleaseID{GroupID: "org.kie", ArtifactID: "missing", Version: "1.0"}

			result, err := failover.Run(ctx, sc)
			Expect(err).To(HaveOccurred())
			Expect(rest.IsStatus(err, 400)).To(BeTrue())
			Expect(result.Steps).To(HaveLen(1))
			Expect(result.Signal.Outcome).To(Equal(failover.SignalNotSent))
			Expect(kie.Signals()).To(BeEmpty())
		})

		It("reports instances that cannot be listed", func() {
			kie = kietest.NewServer()
			d := kietest.NewDeployment(kie, 10*time.Millisecond)
			d.FailInstances(errors.New("pods is forbidden"))
			sc := newContext(kie, d)

			result, err := failover.Run(ctx, sc)
			Expect(err).To(MatchError(ContainSubstring("pods is forbidden")))
			Expect(result.Steps).To(HaveLen(2))
		})
	})

	DescribeTable("signal outcome names",
		func(o failover.SignalOutcome, name string) {
			Expect(o.String()).To(Equal(name))
		},
		Entry("not sent", failover.SignalNotSent, "not sent"),
		Entry("delivered", failover.SignalDelivered, "delivered"),
		Entry("remote unavailable", failover.SignalRemoteUnavailable, "remote unavailable"),
		Entry("failed", failover.SignalFailed, "failed"),
		Entry("in flight", failover.SignalInFlight, "in flight"),
	)
})
