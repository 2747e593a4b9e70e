package jbpm

import (
	"context"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kiegroup/kie-cloud-tests/test/failover"
	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/scenario"
)

var _ = Describe("Process failover", Label("failover"), func() {
	var (
		ctx      context.Context
		fw       *framework.Framework
		settings *scenario.Settings
		sn       *scenario.WorkbenchKieServerPersistent
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		settings, err = scenario.LoadSettings("")
		if errors.Is(err, scenario.ErrNoSettings) {
			Skip("set " + scenario.EnvNamespace + " or " + scenario.EnvSettingsFile + " to run against a cluster")
		}
		Expect(err).NotTo(HaveOccurred())

		fw, err = framework.New(ctx, settings.Namespace, framework.WithLogger(framework.NewLogger(slog.LevelInfo, GinkgoWriter)))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(fw.Cleanup)

		Expect(fw.RequirePrerequisites(ctx,
			framework.WorkloadRef{Kind: settings.Workbench.Kind, Name: settings.Workbench.Name},
			framework.WorkloadRef{Kind: settings.KieServer.Kind, Name: settings.KieServer.Name},
		)).To(Succeed())

		sn, err = scenario.New(fw, settings)
		Expect(err).NotTo(HaveOccurred())
		selector, err := sn.KieServerDeployment().Selector(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(fw.WaitForPodsReady(ctx, selector, 1)).To(Succeed())
		Expect(sn.ScaleDeployments(ctx)).To(Succeed())
		Expect(sn.DeployProjectToWorkbench(ctx)).To(Succeed())
		sn.ReleaseContainer(settings.Container.ID)
	})

	It("keeps process state and variables when the kie server is killed", func() {
		kie, err := sn.KieServerClient(ctx)
		Expect(err).NotTo(HaveOccurred())
		ctrl, err := sn.ControllerClient(ctx)
		Expect(err).NotTo(HaveOccurred())

		sc := failover.NewContext(kie, ctrl, sn.KieServerDeployment(), fw.FrameworkConfig(), fw.Logger())
		sc.Fixtures.ContainerID = settings.Container.ID
		sc.Fixtures.ContainerAlias = settings.Container.Alias

		result, err := failover.Run(ctx, sc)
		for _, step := range result.Steps {
			GinkgoWriter.Printf("step %d %-30s %s\n", step.Step, step.Name, step.Duration)
		}
		GinkgoWriter.Printf("asynchronous signal: %s\n", result.Signal.Outcome)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Passed()).To(BeTrue())
	})
})
