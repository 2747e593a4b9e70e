package framework

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NamespaceExists reports whether the scenario namespace exists
func (f *Framework) NamespaceExists(ctx context.Context) (bool, error) {
	_, err := f.client.CoreV1().Namespaces().Get(ctx, f.namespace, metav1.GetOptions{})
	if err == nil {
		return true, nil
	}
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get namespace %s: %w", f.namespace, err)
}

// RequireNamespace fails with ErrNamespaceNotFound when the scenario namespace is missing
func (f *Framework) RequireNamespace(ctx context.Context) error {
	exists, err := f.NamespaceExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return NewResourceError("Namespace", "", f.namespace, ErrNamespaceNotFound)
	}
	return nil
}
