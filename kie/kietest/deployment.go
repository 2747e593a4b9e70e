package kietest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework/deployment"
)

// Deployment is the pod side of a fake Server
type Deployment struct {
	server      *Server
	scriptWait  time.Duration
	mu          sync.Mutex
	deletions   int
	scaleErr    error
	instanceErr error
}

// NewDeployment binds a Deployment to s. DeleteInstances waits up to
// scriptWait for a long script to start before killing the pods.
func NewDeployment(s *Server, scriptWait time.Duration) *Deployment {
	return &Deployment{server: s, scriptWait: scriptWait}
}

// FailScale makes WaitForScale return err
func (d *Deployment) FailScale(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scaleErr = err
}

// FailInstances makes Instances return err
func (d *Deployment) FailInstances(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instanceErr = err
}

// Deletions returns how many times the pods were deleted
func (d *Deployment) Deletions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deletions
}

func (d *Deployment) Instances(ctx context.Context) ([]deployment.Instance, error) {
	d.mu.Lock()
	err := d.instanceErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	names := d.server.InstanceNames()
	instances := make([]deployment.Instance, 0, len(names))
	for _, name := range names {
		instances = append(instances, deployment.Instance{Name: name, Ready: true})
	}
	return instances, nil
}

func (d *Deployment) DeleteInstances(ctx context.Context) error {
	if d.scriptWait > 0 {
		d.server.waitScript(d.scriptWait)
	}
	d.server.Kill()

	d.mu.Lock()
	d.deletions++
	d.mu.Unlock()
	return nil
}

// WaitForInstancesGone fails when one of names is still serving
func (d *Deployment) WaitForInstancesGone(ctx context.Context, names []string) error {
	current := make(map[string]bool)
	for _, name := range d.server.InstanceNames() {
		current[name] = true
	}
	for _, name := range names {
		if current[name] {
			return fmt.Errorf("instance %s was not terminated", name)
		}
	}
	return nil
}

func (d *Deployment) WaitForScale(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scaleErr
}
