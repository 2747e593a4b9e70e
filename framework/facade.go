package framework

import (
	"context"
	"errors"

	"github.com/kiegroup/kie-cloud-tests/test/framework/wait"

	"k8s.io/apimachinery/pkg/labels"
)

// WaitForPodsReady waits up to PodReadyTimeout for minReady pods matching the selector
func (f *Framework) WaitForPodsReady(ctx context.Context, selector labels.Selector, minReady int) error {
	err := wait.ForPodsReady(ctx, f, selector, f.config.PodReadyTimeout, f.config.PodReadyPollInterval, minReady)
	if errors.Is(err, wait.ErrTimeout) {
		return NewTimeoutError(nil, "pod readiness", f.config.PodReadyTimeout, err.Error())
	}
	return err
}
