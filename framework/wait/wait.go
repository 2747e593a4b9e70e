package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	apiwait "k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
)

// ErrTimeout is wrapped by every wait that runs out of time
var ErrTimeout = errors.New("timed out waiting for condition")

// Clients provides access to Kubernetes clients needed for wait operations
type Clients interface {
	Client() kubernetes.Interface
	Namespace() string
	Logger() *slog.Logger
}

// ForPodsReady waits until at least minReady pods matching the selector are ready
func ForPodsReady(ctx context.Context, c Clients, selector labels.Selector, timeout, interval time.Duration, minReady int) error {
	err := apiwait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		pods, err := listPods(ctx, c, selector)
		if err != nil {
			return false, err
		}
		return len(pods) > 0 && len(ReadyPods(pods)) >= minReady, nil
	})
	if err != nil {
		return wrapTimeout(ctx, err, fmt.Sprintf("%d ready pods matching %q", minReady, selector))
	}
	return nil
}

// ForScale waits until exactly desired pods matching the selector are ready
// and none of the counted pods is terminating.
func ForScale(ctx context.Context, c Clients, selector labels.Selector, desired int, timeout, interval time.Duration) error {
	last := -1
	err := apiwait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		pods, err := listPods(ctx, c, selector)
		if err != nil {
			// Transient API errors are expected while pods are being replaced.
			c.Logger().Debug("listing pods failed, retrying", "selector", selector.String(), "error", err)
			return false, nil
		}

		ready := len(ReadyPods(pods))
		if ready != last {
			c.Logger().Info("waiting for scale", "selector", selector.String(), "ready", ready, "desired", desired)
			last = ready
		}
		return ready == desired, nil
	})
	if err != nil {
		return wrapTimeout(ctx, err, fmt.Sprintf("%d ready pods matching %q", desired, selector))
	}
	return nil
}

// ForPodsTerminated waits until no pod in names still exists
func ForPodsTerminated(ctx context.Context, c Clients, selector labels.Selector, names []string, timeout, interval time.Duration) error {
	gone := make(map[string]bool, len(names))
	err := apiwait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		pods, err := listPods(ctx, c, selector)
		if err != nil {
			return false, nil
		}
		present := make(map[string]bool, len(pods))
		for _, pod := range pods {
			present[pod.Name] = true
		}
		for _, name := range names {
			if !present[name] {
				gone[name] = true
			}
		}
		return len(gone) == len(names), nil
	})
	if err != nil {
		return wrapTimeout(ctx, err, fmt.Sprintf("termination of %d pods", len(names)))
	}
	return nil
}

// ReadyPods returns the pods that are ready and not being deleted
func ReadyPods(pods []corev1.Pod) []corev1.Pod {
	var ready []corev1.Pod
	for i := range pods {
		if pods[i].DeletionTimestamp == nil && IsPodReady(&pods[i]) {
			ready = append(ready, pods[i])
		}
	}
	return ready
}

// IsPodReady checks if a pod is in Ready state
func IsPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}

	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady {
			return condition.Status == corev1.ConditionTrue
		}
	}

	return false
}

func listPods(ctx context.Context, c Clients, selector labels.Selector) ([]corev1.Pod, error) {
	pods, err := c.Client().CoreV1().Pods(c.Namespace()).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return pods.Items, nil
}

func wrapTimeout(ctx context.Context, err error, what string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if apiwait.Interrupted(err) {
		return fmt.Errorf("%w: %s", ErrTimeout, what)
	}
	return err
}
