package framework

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for framework operations
var (
	// ErrNamespaceRequired indicates that a namespace was not provided
	ErrNamespaceRequired = errors.New("namespace is required")

	// ErrClusterConnection indicates failure to connect to the cluster
	ErrClusterConnection = errors.New("failed to connect to cluster")

	// ErrNamespaceNotFound indicates that the scenario namespace does not exist
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrDeploymentNotFound indicates that a Kie Server or Workbench deployment does not exist
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrRouteNotFound indicates that no route exposes a deployment
	ErrRouteNotFound = errors.New("route not found")

	// ErrCRDNotEstablished indicates that a CRD is not in established condition
	ErrCRDNotEstablished = errors.New("CRD not established")

	// ErrTimeout is matched by every TimeoutError
	ErrTimeout = errors.New("timed out")

	// ErrScaleTimeout indicates that a deployment did not return to its replica count
	ErrScaleTimeout = errors.New("deployment scale timed out")

	// ErrContainerStartTimeout indicates that a Kie container never reported STARTED
	ErrContainerStartTimeout = errors.New("kie container start timed out")

	// ErrJobTimeout indicates that a Workbench job did not finish in time
	ErrJobTimeout = errors.New("workbench job timed out")

	// ErrResourceNotFound indicates that a resource was not found
	ErrResourceNotFound = errors.New("resource not found")

	// ErrContextCancelled indicates the operation was cancelled
	ErrContextCancelled = errors.New("operation cancelled")
)

// ResourceError represents an error related to a specific resource
type ResourceError struct {
	Kind      string
	Namespace string
	Name      string
	Err       error
}

func (e *ResourceError) Error() string {
	if e.Namespace != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Kind, e.Namespace, e.Name, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Name, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(kind, namespace, name string, err error) *ResourceError {
	return &ResourceError{
		Kind:      kind,
		Namespace: namespace,
		Name:      name,
		Err:       err,
	}
}

// PrerequisiteError represents an error when checking prerequisites
type PrerequisiteError struct {
	Component string
	Err       error
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite check failed for %s: %v", e.Component, e.Err)
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// NewPrerequisiteError creates a new PrerequisiteError
func NewPrerequisiteError(component string, err error) *PrerequisiteError {
	return &PrerequisiteError{
		Component: component,
		Err:       err,
	}
}

// CleanupError aggregates the failures of released resources
type CleanupError struct {
	Phase string
	Errs  []error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed during %s phase: %v", e.Phase, errors.Join(e.Errs...))
}

func (e *CleanupError) Unwrap() []error {
	return e.Errs
}

// NewCleanupError creates a new CleanupError
func NewCleanupError(phase string, errs ...error) *CleanupError {
	return &CleanupError{
		Phase: phase,
		Errs:  errs,
	}
}

// TimeoutError represents a bounded wait that expired
type TimeoutError struct {
	// Kind is the sentinel classifying the wait, e.g. ErrScaleTimeout
	Kind      error
	Operation string
	Duration  time.Duration
	Details   string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timeout after %s waiting for %s", e.Duration, e.Operation)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	return e.Kind != nil && target == e.Kind
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(kind error, operation string, d time.Duration, details string) *TimeoutError {
	return &TimeoutError{
		Kind:      kind,
		Operation: operation,
		Duration:  d,
		Details:   details,
	}
}

// IsNotFound returns true if the error indicates a resource was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrDeploymentNotFound) ||
		errors.Is(err, ErrNamespaceNotFound)
}

// IsTimeout returns true if the error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCancelled returns true if the error indicates cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, ErrContextCancelled)
}
