// Package controller is a REST client for the Kie Server controller
// embedded in Business Central.
package controller

import (
	"context"
	"net/http"

	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
	"github.com/kiegroup/kie-cloud-tests/test/kie/rest"
)

// BasePath is the root of the controller management API
const BasePath = "/rest/controller/management"

// Client talks to the controller of one Workbench
type Client struct {
	rest *rest.Client
}

// NewClient creates a controller client. cfg.BaseURL is the Workbench root.
func NewClient(cfg rest.Config) (*Client, error) {
	r, err := rest.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{rest: r}, nil
}

func templatePath(serverID string) string {
	return BasePath + "/servers/" + rest.PathEscape(serverID)
}

func containerSpecPath(serverID, containerID string) string {
	return templatePath(serverID) + "/containers/" + rest.PathEscape(containerID)
}

// SaveContainerSpec registers the container on the server template with the
// desired status. The controller pushes it to every connected Kie Server.
func (c *Client) SaveContainerSpec(ctx context.Context, serverID, serverName, containerID, alias string, release model.ReleaseID, status model.KieContainerStatus) (*model.ContainerSpec, error) {
	spec := &model.ContainerSpec{
		ContainerID:   containerID,
		ContainerName: alias,
		ServerTemplateKey: model.ServerTemplateKey{
			ServerID:   serverID,
			ServerName: serverName,
		},
		ReleaseID:     release,
		Configuration: map[string]interface{}{},
		Status:        status,
	}
	if err := c.rest.Do(ctx, http.MethodPut, containerSpecPath(serverID, containerID), nil, spec, nil); err != nil {
		return nil, err
	}
	return spec, nil
}

// GetServerTemplate returns a server template with its container specs
func (c *Client) GetServerTemplate(ctx context.Context, serverID string) (*model.ServerTemplate, error) {
	var tpl model.ServerTemplate
	if err := c.rest.Get(ctx, templatePath(serverID), nil, &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// DeleteContainerSpec removes a container spec. A missing spec is not an error.
func (c *Client) DeleteContainerSpec(ctx context.Context, serverID, containerID string) error {
	err := c.rest.Do(ctx, http.MethodDelete, containerSpecPath(serverID, containerID), nil, nil, nil)
	if rest.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}
