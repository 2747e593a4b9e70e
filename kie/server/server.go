// Package server is a REST client for the Kie Server process, query and
// server-info services.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/framework/retry"
	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
	"github.com/kiegroup/kie-cloud-tests/test/kie/rest"

	apiwait "k8s.io/apimachinery/pkg/util/wait"
)

// BasePath is the root of the Kie Server REST API
const BasePath = "/services/rest/server"

// HTTPError is a non-2xx answer from the Kie Server
type HTTPError = rest.HTTPError

// IsRemoteUnavailable reports whether err came from the Kie Server side:
// an HTTP error status or a failed connection.
func IsRemoteUnavailable(err error) bool {
	return rest.IsRemoteUnavailable(err)
}

// ServiceError is a ServiceResponse whose type is not SUCCESS
type ServiceError struct {
	Type model.ResponseType
	Msg  string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("kie server responded %s: %s", e.Type, e.Msg)
}

// Client talks to one Kie Server endpoint
type Client struct {
	rest *rest.Client
}

// NewClient creates a Kie Server client. cfg.BaseURL is the server root,
// e.g. https://myapp-kieserver.apps.example.com.
func NewClient(cfg rest.Config) (*Client, error) {
	r, err := rest.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{rest: r}, nil
}

func containerPath(containerID string) string {
	return BasePath + "/containers/" + rest.PathEscape(containerID)
}

func instancePath(containerID string, pid int64) string {
	return containerPath(containerID) + "/processes/instances/" + strconv.FormatInt(pid, 10)
}

func decodeResult(resp *model.ServiceResponse, key string, out interface{}) error {
	if resp.Type != model.ResponseSuccess {
		return &ServiceError{Type: resp.Type, Msg: resp.Msg}
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("kie server response has no result: %s", resp.Msg)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(resp.Result, &wrapper); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	raw, ok := wrapper[key]
	if !ok {
		return fmt.Errorf("kie server result has no %q", key)
	}
	return json.Unmarshal(raw, out)
}

// getResult reads a ServiceResponse and decodes result[key]. Transport
// failures are retried; an answer that decodes to an error is final.
func getResult[T any](ctx context.Context, c *Client, path, key string) (*T, error) {
	return rest.Retry(ctx, c.rest, path, func(ctx context.Context) (*T, error) {
		var resp model.ServiceResponse
		if err := c.rest.Do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
			return nil, err
		}
		var out T
		if err := decodeResult(&resp, key, &out); err != nil {
			return nil, retry.Permanent(err)
		}
		return &out, nil
	})
}

// GetServerInfo returns the identity of the Kie Server
func (c *Client) GetServerInfo(ctx context.Context) (*model.KieServerInfo, error) {
	return getResult[model.KieServerInfo](ctx, c, BasePath, "kie-server-info")
}

// GetContainerInfo returns one deployed container
func (c *Client) GetContainerInfo(ctx context.Context, containerID string) (*model.KieContainer, error) {
	return getResult[model.KieContainer](ctx, c, containerPath(containerID), "kie-container")
}

// ListContainers returns every container deployed on the server
func (c *Client) ListContainers(ctx context.Context) ([]model.KieContainer, error) {
	list, err := getResult[model.KieContainerList](ctx, c, BasePath+"/containers", "kie-containers")
	if err != nil {
		return nil, err
	}
	return list.Containers, nil
}

// DisposeContainer removes a container. A container that does not exist is not an error.
func (c *Client) DisposeContainer(ctx context.Context, containerID string) error {
	err := c.rest.Do(ctx, http.MethodDelete, containerPath(containerID), nil, nil, nil)
	if rest.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// StartProcess starts a process and returns the new instance id
func (c *Client) StartProcess(ctx context.Context, containerID, processID string, variables map[string]interface{}) (int64, error) {
	if variables == nil {
		variables = map[string]interface{}{}
	}
	var pid int64
	path := containerPath(containerID) + "/processes/" + rest.PathEscape(processID) + "/instances"
	if err := c.rest.Do(ctx, http.MethodPost, path, nil, variables, &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

// SignalProcessInstance delivers a signal with an optional event payload
func (c *Client) SignalProcessInstance(ctx context.Context, containerID string, pid int64, signal string, event interface{}) error {
	path := instancePath(containerID, pid) + "/signal/" + rest.PathEscape(signal)
	return c.rest.Do(ctx, http.MethodPost, path, nil, event, nil)
}

// GetProcessInstance returns one process instance
func (c *Client) GetProcessInstance(ctx context.Context, containerID string, pid int64) (*model.ProcessInstance, error) {
	var pi model.ProcessInstance
	if err := c.rest.Get(ctx, instancePath(containerID, pid), nil, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

// GetProcessInstanceVariables returns the variables of a process instance
func (c *Client) GetProcessInstanceVariables(ctx context.Context, containerID string, pid int64) (map[string]interface{}, error) {
	var vars map[string]interface{}
	if err := c.rest.Get(ctx, instancePath(containerID, pid)+"/variables", nil, &vars); err != nil {
		return nil, err
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}
	return vars, nil
}

// AbortProcessInstance aborts a process instance
func (c *Client) AbortProcessInstance(ctx context.Context, containerID string, pid int64) error {
	return c.rest.Do(ctx, http.MethodDelete, instancePath(containerID, pid), nil, nil, nil)
}

// FindProcessInstances pages through the process instances of all containers
func (c *Client) FindProcessInstances(ctx context.Context, page, pageSize int) ([]model.ProcessInstance, error) {
	query := url.Values{
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	var list model.ProcessInstanceList
	if err := c.rest.Get(ctx, BasePath+"/queries/processes/instances", query, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// WaitForContainerStart polls until the container reports STARTED. Missing
// containers and remote errors are polled through; expiry is a
// *framework.TimeoutError matching framework.ErrContainerStartTimeout.
func (c *Client) WaitForContainerStart(ctx context.Context, containerID string, timeout, interval time.Duration) error {
	var last string
	err := apiwait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		container, err := c.GetContainerInfo(ctx, containerID)
		if err != nil {
			last = err.Error()
			return false, nil
		}
		last = "status " + string(container.Status)
		return container.Status == model.ContainerStarted, nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if apiwait.Interrupted(err) {
		return framework.NewTimeoutError(framework.ErrContainerStartTimeout, "container "+containerID+" to start", timeout, last)
	}
	return fmt.Errorf("waiting for container %s: %w", containerID, err)
}
