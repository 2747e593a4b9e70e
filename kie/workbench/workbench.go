// Package workbench is a REST client for the Business Central space and
// project API. Every mutating call is an asynchronous job; the client waits
// for the job to finish before returning.
package workbench

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/kie/rest"

	apiwait "k8s.io/apimachinery/pkg/util/wait"
)

// BasePath is the root of the Workbench REST API
const BasePath = "/rest"

// DefaultGroupID is the Maven group of projects created in new spaces
const DefaultGroupID = "org.kie.cloud"

// JobStatus is the state of an asynchronous Workbench job
type JobStatus string

// Job statuses reported by Business Central
const (
	JobAccepted         JobStatus = "ACCEPTED"
	JobApproved         JobStatus = "APPROVED"
	JobSuccess          JobStatus = "SUCCESS"
	JobFail             JobStatus = "FAIL"
	JobDenied           JobStatus = "DENIED"
	JobBadRequest       JobStatus = "BAD_REQUEST"
	JobResourceNotExist JobStatus = "RESOURCE_NOT_EXIST"
	JobDuplicate        JobStatus = "DUPLICATE_RESOURCE"
	JobServerError      JobStatus = "SERVER_ERROR"
	JobGone             JobStatus = "GONE"
)

// Done reports whether the job reached a final status
func (s JobStatus) Done() bool {
	switch s {
	case JobAccepted, JobApproved, "":
		return false
	}
	return true
}

// JobRequest is the answer to a mutating call and to a job status query
type JobRequest struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
	Result string    `json:"result,omitempty"`
}

// JobError is a job that finished without success
type JobError struct {
	Operation string
	Job       JobRequest
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("workbench job %s (%s) finished with %s", e.Job.JobID, e.Operation, e.Job.Status)
	if e.Job.Result != "" {
		msg += ": " + e.Job.Result
	}
	return msg
}

type spaceRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Owner          string `json:"owner"`
	DefaultGroupID string `json:"defaultGroupId"`
}

type cloneRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	GitURL      string `json:"gitURL"`
	UserName    string `json:"userName,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Client talks to one Workbench
type Client struct {
	rest         *rest.Client
	owner        string
	jobTimeout   time.Duration
	pollInterval time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithJobTimeout bounds each wait for a job
func WithJobTimeout(timeout, interval time.Duration) Option {
	return func(c *Client) {
		c.jobTimeout = timeout
		c.pollInterval = interval
	}
}

// NewClient creates a Workbench client. Spaces are owned by cfg.Username.
func NewClient(cfg rest.Config, opts ...Option) (*Client, error) {
	r, err := rest.New(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		rest:         r,
		owner:        cfg.Username,
		jobTimeout:   10 * time.Minute,
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func spacePath(space string) string {
	return BasePath + "/spaces/" + rest.PathEscape(space)
}

func projectPath(space, project string) string {
	return spacePath(space) + "/projects/" + rest.PathEscape(project)
}

func (c *Client) submit(ctx context.Context, operation, method, path string, body interface{}) error {
	var job JobRequest
	if err := c.rest.Do(ctx, method, path, nil, body, &job); err != nil {
		return err
	}
	if job.JobID == "" {
		return &JobError{Operation: operation, Job: job}
	}
	return c.WaitForJob(ctx, operation, job.JobID)
}

// CreateSpace creates an organizational unit
func (c *Client) CreateSpace(ctx context.Context, space string) error {
	return c.submit(ctx, "create space "+space, http.MethodPost, BasePath+"/spaces", spaceRequest{
		Name:           space,
		Owner:          c.owner,
		DefaultGroupID: DefaultGroupID,
	})
}

// CloneRepository imports a Git repository as a project of space
func (c *Client) CloneRepository(ctx context.Context, space, project, gitURL, username, password string) error {
	return c.submit(ctx, "clone "+project, http.MethodPost, spacePath(space)+"/git/clone", cloneRequest{
		Name:     project,
		GitURL:   gitURL,
		UserName: username,
		Password: password,
	})
}

// DeployProject builds the project and deploys its Kjar to the Workbench Maven repository
func (c *Client) DeployProject(ctx context.Context, space, project string) error {
	return c.submit(ctx, "deploy "+project, http.MethodPost, projectPath(space, project)+"/maven/deploy", nil)
}

// DeleteProject removes a project from space
func (c *Client) DeleteProject(ctx context.Context, space, project string) error {
	return c.submit(ctx, "delete project "+project, http.MethodDelete, projectPath(space, project), nil)
}

// DeleteSpace removes an organizational unit
func (c *Client) DeleteSpace(ctx context.Context, space string) error {
	return c.submit(ctx, "delete space "+space, http.MethodDelete, spacePath(space), nil)
}

// GetJob returns the current status of a job
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobRequest, error) {
	var job JobRequest
	if err := c.rest.Get(ctx, BasePath+"/jobs/"+rest.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForJob polls a job until it reaches a final status. Anything other
// than SUCCESS is a *JobError; expiry is a *framework.TimeoutError matching
// framework.ErrJobTimeout.
func (c *Client) WaitForJob(ctx context.Context, operation, jobID string) error {
	var final *JobRequest
	err := apiwait.PollUntilContextTimeout(ctx, c.pollInterval, c.jobTimeout, true, func(ctx context.Context) (bool, error) {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return false, err
		}
		if job.Status.Done() {
			final = job
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		if ctx.Err() == nil && apiwait.Interrupted(err) {
			return framework.NewTimeoutError(framework.ErrJobTimeout, operation, c.jobTimeout, "job "+jobID)
		}
		return err
	}
	if final.Status != JobSuccess {
		return &JobError{Operation: operation, Job: *final}
	}
	return nil
}
