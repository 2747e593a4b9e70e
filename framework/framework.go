package framework

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kiegroup/kie-cloud-tests/test/framework/config"

	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Framework attaches to an already provisioned KIE scenario namespace and
// owns the resources tests register for release.
type Framework struct {
	client        kubernetes.Interface
	dynamicClient dynamic.Interface
	restConfig    *rest.Config
	namespace     string
	ctx           context.Context
	logger        *slog.Logger
	config        *config.Config
	kubeconfig    string
	apiextClient  apiextensionsclient.Interface

	// Release stack, unwound by Cleanup in reverse order
	mu       sync.Mutex
	releases []Release
}

// Option is a function that configures the Framework
type Option func(*Framework)

// WithLogger sets a custom logger for the framework
func WithLogger(logger *slog.Logger) Option {
	return func(f *Framework) {
		f.logger = logger
	}
}

// WithConfig sets a custom configuration for the framework
func WithConfig(cfg *config.Config) Option {
	return func(f *Framework) {
		f.config = cfg
	}
}

// WithKubeconfig loads cluster credentials from the given kubeconfig file
// instead of the in-cluster or default home configuration.
func WithKubeconfig(path string) Option {
	return func(f *Framework) {
		f.kubeconfig = path
	}
}

// WithClients injects prebuilt clients, skipping cluster discovery.
func WithClients(client kubernetes.Interface, dynamicClient dynamic.Interface) Option {
	return func(f *Framework) {
		f.client = client
		f.dynamicClient = dynamicClient
	}
}

// WithAPIExtensionsClient injects the client used for CRD checks
func WithAPIExtensionsClient(client apiextensionsclient.Interface) Option {
	return func(f *Framework) {
		f.apiextClient = client
	}
}

// New creates a new Framework instance for the specified namespace.
// The context is used for all Kubernetes operations and should be cancelled
// to stop any in-progress operations. Cleanup runs on a context detached
// from it.
func New(ctx context.Context, namespace string, opts ...Option) (*Framework, error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}

	if ctx == nil {
		ctx = context.Background()
	}

	f := &Framework{
		namespace: namespace,
		ctx:       ctx,
		logger:    slog.Default(),
		config:    config.FromEnv(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client != nil && f.dynamicClient != nil {
		return f, nil
	}

	restConfig, err := f.loadRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClusterConnection, err)
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create kubernetes client: %v", ErrClusterConnection, err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create dynamic client: %v", ErrClusterConnection, err)
	}

	f.restConfig = restConfig
	f.client = client
	f.dynamicClient = dynamicClient

	return f, nil
}

func (f *Framework) loadRESTConfig() (*rest.Config, error) {
	if f.kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", f.kubeconfig)
	}

	restConfig, err := rest.InClusterConfig()
	if err == nil {
		return restConfig, nil
	}

	return clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
}

// Namespace returns the namespace used by this framework instance
func (f *Framework) Namespace() string {
	return f.namespace
}

// Client returns the Kubernetes client
func (f *Framework) Client() kubernetes.Interface {
	return f.client
}

// DynamicClient returns the dynamic Kubernetes client
func (f *Framework) DynamicClient() dynamic.Interface {
	return f.dynamicClient
}

// Config returns the Kubernetes REST config. It is nil when clients were injected.
func (f *Framework) Config() *rest.Config {
	return f.restConfig
}

// FrameworkConfig returns the framework configuration
func (f *Framework) FrameworkConfig() *config.Config {
	return f.config
}

// Context returns the context
func (f *Framework) Context() context.Context {
	return f.ctx
}

// Logger returns the logger
func (f *Framework) Logger() *slog.Logger {
	return f.logger
}

// Defer registers fn to run during Cleanup. Releases run last-in first-out.
func (f *Framework) Defer(name string, fn func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, Release{Name: name, Fn: fn})
}

// PendingReleases returns the names of the registered releases in the order they will run
func (f *Framework) PendingReleases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.releases))
	for i := len(f.releases) - 1; i >= 0; i-- {
		names = append(names, f.releases[i].Name)
	}
	return names
}
