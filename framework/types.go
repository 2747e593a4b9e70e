package framework

import (
	"context"
	"log/slog"

	"github.com/kiegroup/kie-cloud-tests/test/framework/config"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

// Release is a teardown action registered on the framework
type Release struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Clients provides access to Kubernetes clients
type Clients interface {
	Client() kubernetes.Interface
	DynamicClient() dynamic.Interface
	Namespace() string
	Logger() *slog.Logger
}

// Releaser registers teardown actions
type Releaser interface {
	Defer(name string, fn func(ctx context.Context) error)
}

// FrameworkOperations combines all capabilities needed by subpackages
type FrameworkOperations interface {
	Clients
	Releaser
	FrameworkConfig() *config.Config
}
