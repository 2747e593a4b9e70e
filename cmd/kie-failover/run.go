package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kiegroup/kie-cloud-tests/test/failover"
	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/framework/config"
	"github.com/kiegroup/kie-cloud-tests/test/framework/deployment"
	"github.com/kiegroup/kie-cloud-tests/test/framework/gvr"
	"github.com/kiegroup/kie-cloud-tests/test/framework/oc"
	"github.com/kiegroup/kie-cloud-tests/test/framework/process"
	"github.com/kiegroup/kie-cloud-tests/test/scenario"
)

func runFailover(parent context.Context, out io.Writer, opts *options) (err error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
	}

	level, err := framework.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := framework.NewLogger(level, os.Stderr)

	settings, err := scenario.LoadSettings(opts.settingsFile)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fw, err := framework.New(ctx, settings.Namespace,
		framework.WithLogger(logger),
		framework.WithKubeconfig(opts.kubeconfig),
		framework.WithConfig(config.FromEnv()))
	if err != nil {
		return err
	}
	if !opts.skipCleanup {
		defer func() {
			if cleanupErr := fw.Cleanup(); cleanupErr != nil {
				logger.Warn("cleanup failed", "error", cleanupErr)
				if err == nil {
					err = cleanupErr
				}
			}
		}()
	}

	if !opts.skipPrereqs {
		if err := fw.RequirePrerequisites(ctx,
			framework.WorkloadRef{Kind: settings.Workbench.Kind, Name: settings.Workbench.Name},
			framework.WorkloadRef{Kind: settings.KieServer.Kind, Name: settings.KieServer.Name},
		); err != nil {
			return err
		}
	}

	sn, err := scenario.New(fw, settings)
	if err != nil {
		return err
	}
	if err := sn.ScaleDeployments(ctx); err != nil {
		return err
	}
	if err := sn.DeployProjectToWorkbench(ctx); err != nil {
		return err
	}
	sn.ReleaseContainer(settings.Container.ID)

	kie, err := sn.KieServerClient(ctx)
	if err != nil {
		return err
	}
	ctrl, err := sn.ControllerClient(ctx)
	if err != nil {
		return err
	}

	sc := failover.NewContext(kie, ctrl, sn.KieServerDeployment(), fw.FrameworkConfig(), logger)
	sc.Fixtures.ContainerID = settings.Container.ID
	sc.Fixtures.ContainerAlias = settings.Container.Alias

	result, runErr := failover.Run(ctx, sc)
	printResult(out, result)
	if opts.reportFile != "" {
		if err := failover.NewExporter(opts.reportFile, "").Export(result); err != nil {
			logger.Warn("failed to export results", "file", opts.reportFile, "error", err)
		}
	}

	if runErr != nil {
		collectDiagnostics(ctx, fw, sn, opts, logger)
	}
	return runErr
}

// collectDiagnostics saves pod logs, the Kie Server workload and an oc
// dump of the namespace. Failures are logged only.
func collectDiagnostics(ctx context.Context, fw *framework.Framework, sn *scenario.WorkbenchKieServerPersistent, opts *options, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	dir := filepath.Join(opts.outputDir, fw.Namespace())

	var components []framework.LogComponent
	for _, d := range []*deployment.Deployment{sn.KieServerDeployment(), sn.WorkbenchDeployment()} {
		selector, err := d.Selector(ctx)
		if err != nil {
			logger.Warn("failed to resolve selector", "deployment", d.Name(), "error", err)
			continue
		}
		components = append(components, framework.LogComponent{Name: d.Name(), Selector: selector.String()})
	}
	if _, err := fw.CollectLogs(ctx, &framework.LogCollectionConfig{OutputDir: opts.outputDir, IncludePrevious: true}, components...); err != nil {
		logger.Warn("failed to collect logs", "error", err)
	}

	kieServer := sn.KieServerDeployment()
	if resource, ok := gvr.ForKind(kieServer.Kind()); ok {
		if _, err := fw.DumpResource(ctx, resource, kieServer.Name(), dir); err != nil {
			logger.Warn("failed to dump kie server workload", "error", err)
		}
	}

	cli := oc.New(process.NewExecutor(logger), fw.Namespace(), oc.WithKubeconfig(opts.kubeconfig))
	if version, err := cli.Version(ctx); err == nil {
		logger.Debug("dumping namespace", "oc", version)
	}

	for _, d := range []*deployment.Deployment{sn.KieServerDeployment(), sn.WorkbenchDeployment()} {
		path, err := cli.GetYAML(ctx, "route", d.RouteName())
		if err == nil {
			err = moveFile(path, filepath.Join(dir, "route-"+d.RouteName()+".yaml"))
		}
		if err != nil {
			logger.Warn("failed to dump route", "route", d.RouteName(), "error", err)
		}
	}

	dump, err := cli.DumpAll(ctx)
	if err == nil {
		err = moveFile(dump, filepath.Join(dir, "namespace.yaml"))
	}
	if err != nil {
		logger.Warn("failed to dump namespace", "error", err)
		return
	}
	logger.Info("diagnostics collected", "dir", dir)
}

// moveFile copies a temporary oc output file to dst and removes it
func moveFile(src, dst string) error {
	defer os.Remove(src)

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
