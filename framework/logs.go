package framework

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework/concurrent"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"
)

// LogCollectionConfig configures log collection behavior
type LogCollectionConfig struct {
	// OutputDir is the directory to write logs to
	OutputDir string
	// IncludePrevious includes logs from previous container instances,
	// which is where a killed Kie Server leaves its last words
	IncludePrevious bool
	// SinceTime only returns logs after this time
	SinceTime *time.Time
	// TailLines limits the number of lines to return (0 = all)
	TailLines int64
}

// LogComponent selects the pods of one scenario service
type LogComponent struct {
	Name     string
	Selector string
}

// ComponentLogs holds logs for a single container
type ComponentLogs struct {
	Component string
	Pod       string
	Container string
	Logs      string
	Error     error
}

// LogCollectionResult holds the result of collecting logs from all components
type LogCollectionResult struct {
	Namespace string
	Timestamp time.Time
	Logs      []ComponentLogs
	OutputDir string
}

// CollectLogs fetches the logs of every container of the pods selected by
// components and writes one file per container under OutputDir/<namespace>.
func (f *Framework) CollectLogs(ctx context.Context, cfg *LogCollectionConfig, components ...LogComponent) (*LogCollectionResult, error) {
	if cfg == nil {
		cfg = &LogCollectionConfig{}
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "logs"
	}

	logDir := filepath.Join(cfg.OutputDir, f.namespace)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	result := &LogCollectionResult{
		Namespace: f.namespace,
		Timestamp: time.Now(),
		OutputDir: logDir,
	}

	f.logger.Info("collecting logs", "namespace", f.namespace, "components", len(components))

	for _, comp := range components {
		result.Logs = append(result.Logs, f.collectPodsLogs(ctx, comp, cfg)...)
	}

	collected := 0
	for _, l := range result.Logs {
		if l.Error != nil || l.Logs == "" {
			continue
		}

		filename := fmt.Sprintf("%s-%s-%s.log", l.Component, l.Pod, l.Container)
		filename = strings.ReplaceAll(filename, "/", "-")
		if err := os.WriteFile(filepath.Join(logDir, filename), []byte(l.Logs), 0644); err != nil {
			f.logger.Warn("failed to write log file", "file", filename, "error", err)
			continue
		}
		collected++
	}

	f.logger.Info("logs collected", "files", collected, "dir", logDir)
	return result, nil
}

type podContainer struct {
	pod       string
	container string
}

func (f *Framework) collectPodsLogs(ctx context.Context, comp LogComponent, cfg *LogCollectionConfig) []ComponentLogs {
	pods, err := f.client.CoreV1().Pods(f.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: comp.Selector,
	})
	if err != nil {
		return []ComponentLogs{{Component: comp.Name, Error: err}}
	}

	var targets []podContainer
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodPending || pod.Status.Phase == corev1.PodUnknown {
			continue
		}
		for _, c := range pod.Spec.Containers {
			targets = append(targets, podContainer{pod: pod.Name, container: c.Name})
		}
	}

	logs, _ := concurrent.MapWithLimit(ctx, targets, f.config.MaxParallelDeletes, func(ctx context.Context, t podContainer) (ComponentLogs, error) {
		text, err := f.getPodContainerLogs(ctx, t.pod, t.container, cfg)
		return ComponentLogs{Component: comp.Name, Pod: t.pod, Container: t.container, Logs: text, Error: err}, nil
	})
	return logs
}

func (f *Framework) getPodContainerLogs(ctx context.Context, podName, containerName string, cfg *LogCollectionConfig) (string, error) {
	opts := &corev1.PodLogOptions{
		Container: containerName,
		Previous:  cfg.IncludePrevious,
	}

	if cfg.SinceTime != nil {
		t := metav1.NewTime(*cfg.SinceTime)
		opts.SinceTime = &t
	}

	if cfg.TailLines > 0 {
		opts.TailLines = &cfg.TailLines
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stream, err := f.client.CoreV1().Pods(f.namespace).GetLogs(podName, opts).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to stream logs: %w", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return string(data), fmt.Errorf("failed to read logs: %w", err)
	}
	return string(data), nil
}

// DumpResource fetches a namespaced resource and writes it as YAML to
// outputDir/<namespace>/<resource>-<name>.yaml, returning the file path.
func (f *Framework) DumpResource(ctx context.Context, resource schema.GroupVersionResource, name, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "."
	}

	dir := filepath.Join(outputDir, f.namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	obj, err := f.dynamicClient.Resource(resource).Namespace(f.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get %s %s: %w", resource.Resource, name, err)
	}

	obj.SetManagedFields(nil)
	data, err := yaml.Marshal(obj.UnstructuredContent())
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s %s to YAML: %w", resource.Resource, name, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", resource.Resource, name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	f.logger.Debug("resource dumped", "resource", resource.Resource, "name", name, "file", path)
	return path, nil
}
