// Package framework attaches integration tests to an already provisioned KIE
// scenario (Business Central, Kie Server and database) on Kubernetes or
// OpenShift.
//
// The framework never provisions workloads. It finds them by name, hands out
// Kubernetes clients to the subpackages and owns a release stack of teardown
// actions that Cleanup unwinds in reverse order.
//
// # Quick Start
//
//	fw, err := framework.New(ctx, "kie-scenario",
//	    framework.WithLogger(framework.NewLogger(slog.LevelInfo, os.Stderr)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fw.Cleanup()
//
//	if err := fw.RequirePrerequisites(ctx,
//	    framework.WorkloadRef{Kind: gvr.KindDeploymentConfig, Name: "myapp-kieserver"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	fw.Defer("dispose container cont-id", func(ctx context.Context) error {
//	    return kieServer.DisposeContainer(ctx, "cont-id")
//	})
//
// # Cleanup
//
// Cleanup runs on a context detached from the one passed to New, bounded by
// config.CleanupTimeout, so releases still run after a test was cancelled.
// Every release is attempted and failures are returned as a *CleanupError.
//
// # Package Structure
//
//   - config: Timeouts and limits with environment variable and .env support
//   - concurrent: Bounded parallel helpers and joinable background tasks
//   - deployment: Handle on a Kie Server or Workbench workload and its pods
//   - gvr: Centralized GroupVersionResource definitions
//   - oc: Thin wrapper around the OpenShift CLI
//   - process: Command execution with streamed output
//   - retry: Retry logic with exponential backoff
//   - wait: Polling-based readiness and scale checks
package framework
