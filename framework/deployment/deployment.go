package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/framework/concurrent"
	"github.com/kiegroup/kie-cloud-tests/test/framework/config"
	"github.com/kiegroup/kie-cloud-tests/test/framework/gvr"
	"github.com/kiegroup/kie-cloud-tests/test/framework/wait"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	clientretry "k8s.io/client-go/util/retry"
	"k8s.io/utils/ptr"
)

// Clients provides what a Deployment needs from the framework
type Clients interface {
	Client() kubernetes.Interface
	DynamicClient() dynamic.Interface
	Namespace() string
	Logger() *slog.Logger
	FrameworkConfig() *config.Config
}

// Instance is one pod backing a deployment
type Instance struct {
	Name      string
	PodIP     string
	Node      string
	Ready     bool
	StartTime time.Time
}

// Deployment is a handle on one Kie Server or Workbench workload
type Deployment struct {
	c        Clients
	kind     string
	name     string
	resource schema.GroupVersionResource
	url      string
	route    string
}

// Option configures a Deployment
type Option func(*Deployment)

// WithURL pins the endpoint instead of resolving it from a Route
func WithURL(url string) Option {
	return func(d *Deployment) {
		d.url = url
	}
}

// WithRoute sets the Route exposing the deployment. Defaults to the deployment name.
func WithRoute(name string) Option {
	return func(d *Deployment) {
		d.route = name
	}
}

// New returns a handle on the workload of the given kind and name
func New(c Clients, kind, name string, opts ...Option) (*Deployment, error) {
	resource, ok := gvr.ForKind(kind)
	if !ok {
		return nil, fmt.Errorf("unsupported workload kind %q", kind)
	}

	d := &Deployment{c: c, kind: kind, name: name, resource: resource, route: name}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Name returns the workload name
func (d *Deployment) Name() string {
	return d.name
}

// RouteName returns the Route exposing the deployment
func (d *Deployment) RouteName() string {
	return d.route
}

// Kind returns the workload kind
func (d *Deployment) Kind() string {
	return d.kind
}

func (d *Deployment) get(ctx context.Context) (*unstructured.Unstructured, error) {
	obj, err := d.c.DynamicClient().Resource(d.resource).Namespace(d.c.Namespace()).Get(ctx, d.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, framework.NewResourceError(d.kind, d.c.Namespace(), d.name, framework.ErrDeploymentNotFound)
	}
	if err != nil {
		return nil, framework.NewResourceError(d.kind, d.c.Namespace(), d.name, err)
	}
	return obj, nil
}

// Selector returns the pod selector of the workload
func (d *Deployment) Selector(ctx context.Context) (labels.Selector, error) {
	obj, err := d.get(ctx)
	if err != nil {
		return nil, err
	}
	return selectorOf(d.kind, obj)
}

func selectorOf(kind string, obj *unstructured.Unstructured) (labels.Selector, error) {
	if kind == gvr.KindDeploymentConfig {
		set, found, err := unstructured.NestedStringMap(obj.Object, "spec", "selector")
		if err != nil || !found || len(set) == 0 {
			return nil, fmt.Errorf("%s %s has no selector", kind, obj.GetName())
		}
		return labels.SelectorFromSet(set), nil
	}

	raw, found, err := unstructured.NestedMap(obj.Object, "spec", "selector")
	if err != nil || !found {
		return nil, fmt.Errorf("%s %s has no selector", kind, obj.GetName())
	}
	var ls metav1.LabelSelector
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(raw, &ls); err != nil {
		return nil, fmt.Errorf("invalid selector on %s %s: %w", kind, obj.GetName(), err)
	}
	return metav1.LabelSelectorAsSelector(&ls)
}

// Replicas returns the desired replica count of the workload
func (d *Deployment) Replicas(ctx context.Context) (int, error) {
	obj, err := d.get(ctx)
	if err != nil {
		return 0, err
	}
	replicas, found, err := unstructured.NestedInt64(obj.Object, "spec", "replicas")
	if err != nil {
		return 0, fmt.Errorf("invalid replicas on %s %s: %w", d.kind, d.name, err)
	}
	if !found {
		return 1, nil
	}
	return int(replicas), nil
}

func (d *Deployment) pods(ctx context.Context) ([]corev1.Pod, error) {
	selector, err := d.Selector(ctx)
	if err != nil {
		return nil, err
	}
	list, err := d.c.Client().CoreV1().Pods(d.c.Namespace()).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods of %s %s: %w", d.kind, d.name, err)
	}
	return list.Items, nil
}

// Instances returns the pods currently backing the workload, sorted by name.
// Pods already being deleted are left out.
func (d *Deployment) Instances(ctx context.Context) ([]Instance, error) {
	pods, err := d.pods(ctx)
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(pods))
	for i := range pods {
		pod := &pods[i]
		if pod.DeletionTimestamp != nil {
			continue
		}
		inst := Instance{
			Name:  pod.Name,
			PodIP: pod.Status.PodIP,
			Node:  pod.Spec.NodeName,
			Ready: wait.IsPodReady(pod),
		}
		if pod.Status.StartTime != nil {
			inst.StartTime = pod.Status.StartTime.Time
		}
		instances = append(instances, inst)
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].Name < instances[j].Name })
	return instances, nil
}

// DeleteInstances force deletes every pod of the workload with a zero grace
// period. Pods that are already gone are ignored.
func (d *Deployment) DeleteInstances(ctx context.Context) error {
	pods, err := d.pods(ctx)
	if err != nil {
		return err
	}

	d.c.Logger().Info("force deleting instances", "kind", d.kind, "name", d.name, "count", len(pods))

	opts := metav1.DeleteOptions{GracePeriodSeconds: ptr.To(int64(0))}
	return concurrent.ForEachWithLimit(ctx, pods, d.c.FrameworkConfig().MaxParallelDeletes, func(ctx context.Context, pod corev1.Pod) error {
		err := d.c.Client().CoreV1().Pods(d.c.Namespace()).Delete(ctx, pod.Name, opts)
		if err != nil && !apierrors.IsNotFound(err) {
			return framework.NewResourceError("Pod", d.c.Namespace(), pod.Name, err)
		}
		return nil
	})
}

// WaitForScale blocks until the number of ready pods equals the desired
// replica count, up to ScaleTimeout. Expiry is a *framework.TimeoutError
// matching framework.ErrScaleTimeout.
func (d *Deployment) WaitForScale(ctx context.Context) error {
	replicas, err := d.Replicas(ctx)
	if err != nil {
		return err
	}
	selector, err := d.Selector(ctx)
	if err != nil {
		return err
	}

	cfg := d.c.FrameworkConfig()
	err = wait.ForScale(ctx, d.c, selector, replicas, cfg.ScaleTimeout, cfg.ScalePollInterval)
	if errors.Is(err, wait.ErrTimeout) {
		return framework.NewTimeoutError(framework.ErrScaleTimeout,
			fmt.Sprintf("%s %s scale", d.kind, d.name), cfg.ScaleTimeout, fmt.Sprintf("%d replicas", replicas))
	}
	return err
}

// WaitForInstancesGone blocks until none of the named pods exists any more,
// up to ScaleTimeout. Expiry is a *framework.TimeoutError matching
// framework.ErrScaleTimeout.
func (d *Deployment) WaitForInstancesGone(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	selector, err := d.Selector(ctx)
	if err != nil {
		return err
	}

	cfg := d.c.FrameworkConfig()
	err = wait.ForPodsTerminated(ctx, d.c, selector, names, cfg.ScaleTimeout, cfg.ScalePollInterval)
	if errors.Is(err, wait.ErrTimeout) {
		return framework.NewTimeoutError(framework.ErrScaleTimeout,
			fmt.Sprintf("%s %s instances to terminate", d.kind, d.name), cfg.ScaleTimeout, strings.Join(names, ", "))
	}
	return err
}

// Scale sets the replica count and waits for it to be reached
func (d *Deployment) Scale(ctx context.Context, replicas int) error {
	err := clientretry.RetryOnConflict(clientretry.DefaultRetry, func() error {
		obj, err := d.get(ctx)
		if err != nil {
			return err
		}
		if err := unstructured.SetNestedField(obj.Object, int64(replicas), "spec", "replicas"); err != nil {
			return err
		}
		_, err = d.c.DynamicClient().Resource(d.resource).Namespace(d.c.Namespace()).Update(ctx, obj, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to scale %s %s to %d: %w", d.kind, d.name, replicas, err)
	}

	d.c.Logger().Info("scaled", "kind", d.kind, "name", d.name, "replicas", replicas)
	return d.WaitForScale(ctx)
}

// URL returns the base URL of the workload. A pinned URL wins; otherwise the
// host of the Route is used, with https when the Route terminates TLS.
func (d *Deployment) URL(ctx context.Context) (string, error) {
	if d.url != "" {
		return d.url, nil
	}

	route, err := d.c.DynamicClient().Resource(gvr.Route).Namespace(d.c.Namespace()).Get(ctx, d.route, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", framework.NewResourceError("Route", d.c.Namespace(), d.route, framework.ErrRouteNotFound)
	}
	if err != nil {
		return "", framework.NewResourceError("Route", d.c.Namespace(), d.route, err)
	}

	host, _, _ := unstructured.NestedString(route.Object, "spec", "host")
	if host == "" {
		return "", framework.NewResourceError("Route", d.c.Namespace(), d.route, fmt.Errorf("route has no host"))
	}

	scheme := "http"
	if _, found, _ := unstructured.NestedMap(route.Object, "spec", "tls"); found {
		scheme = "https"
	}
	return scheme + "://" + host, nil
}

// InstanceNames returns the names of instances
func InstanceNames(instances []Instance) []string {
	names := make([]string, 0, len(instances))
	for _, inst := range instances {
		names = append(names, inst.Name)
	}
	return names
}
