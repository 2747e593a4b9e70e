package main

import (
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	settingsFile string
	envFile      string
	kubeconfig   string
	logLevel     string
	outputDir    string
	reportFile   string
	skipCleanup  bool
	skipPrereqs  bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "kie-failover",
		Short: "Verify that jBPM process instances survive a Kie Server failover",
		Long: `kie-failover attaches to a provisioned Business Central and Kie Server
deployment, starts a long running process, deletes every Kie Server pod
while the process runs and checks that its state and variables survive
the rescheduling.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFailover(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.settingsFile, "settings", "s", "", "Scenario settings YAML file (default $KIE_CLOUD_SETTINGS)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "File with KIE_CLOUD_* variables to load, if present")
	flags.StringVar(&opts.kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.StringVarP(&opts.outputDir, "output", "o", "results", "Directory for diagnostics of failed runs")
	flags.StringVar(&opts.reportFile, "report", "", "Write the step results to this .csv or .json file")
	flags.BoolVar(&opts.skipCleanup, "skip-cleanup", false, "Keep the container, project and repository after the run")
	flags.BoolVar(&opts.skipPrereqs, "skip-prerequisites", false, "Do not check the namespace and deployments before running")

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
