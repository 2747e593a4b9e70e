// Package model holds the Kie Server, controller and Workbench REST
// representations used by the harness.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProcessInstanceState is the jBPM process instance state
type ProcessInstanceState int

// jBPM process instance states
const (
	StatePending   ProcessInstanceState = 0
	StateActive    ProcessInstanceState = 1
	StateCompleted ProcessInstanceState = 2
	StateAborted   ProcessInstanceState = 3
	StateSuspended ProcessInstanceState = 4
)

func (s ProcessInstanceState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateActive:
		return "ACTIVE"
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	case StateSuspended:
		return "SUSPENDED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Terminal reports whether no further signal can change the instance
func (s ProcessInstanceState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// ProcessInstance is a running or finished process
type ProcessInstance struct {
	ID          int64                  `json:"process-instance-id"`
	ProcessID   string                 `json:"process-id"`
	ProcessName string                 `json:"process-name,omitempty"`
	Version     string                 `json:"process-version,omitempty"`
	State       ProcessInstanceState   `json:"process-instance-state"`
	ContainerID string                 `json:"container-id"`
	Initiator   string                 `json:"initiator,omitempty"`
	Variables   map[string]interface{} `json:"process-instance-variables,omitempty"`
}

// ProcessInstanceList is the query result envelope
type ProcessInstanceList struct {
	Items []ProcessInstance `json:"process-instance"`
}

// KieServerInfo describes a Kie Server
type KieServerInfo struct {
	ServerID     string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Location     string   `json:"location,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ReleaseID identifies a Kjar
type ReleaseID struct {
	GroupID    string `json:"group-id"`
	ArtifactID string `json:"artifact-id"`
	Version    string `json:"version"`
}

func (r ReleaseID) String() string {
	return r.GroupID + ":" + r.ArtifactID + ":" + r.Version
}

// ParseReleaseID parses group:artifact:version
func ParseReleaseID(s string) (ReleaseID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ReleaseID{}, fmt.Errorf("invalid release id %q, expected group:artifact:version", s)
	}
	return ReleaseID{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}, nil
}

// KieContainerStatus is the lifecycle status of a container
type KieContainerStatus string

// Container statuses
const (
	ContainerCreating    KieContainerStatus = "CREATING"
	ContainerStarted     KieContainerStatus = "STARTED"
	ContainerStopped     KieContainerStatus = "STOPPED"
	ContainerDisposing   KieContainerStatus = "DISPOSING"
	ContainerFailed      KieContainerStatus = "FAILED"
	ContainerDeactivated KieContainerStatus = "DEACTIVATED"
)

// KieContainer is a container as reported by a Kie Server
type KieContainer struct {
	ContainerID string             `json:"container-id"`
	Alias       string             `json:"container-alias,omitempty"`
	ReleaseID   ReleaseID          `json:"release-id"`
	Status      KieContainerStatus `json:"status"`
}

// KieContainerList is the container listing envelope
type KieContainerList struct {
	Containers []KieContainer `json:"kie-container"`
}

// ServerTemplateKey identifies a server template on the controller
type ServerTemplateKey struct {
	ServerID   string `json:"server-id"`
	ServerName string `json:"server-name"`
}

// ContainerSpec is the controller's desired state of a container
type ContainerSpec struct {
	ContainerID       string                 `json:"container-id"`
	ContainerName     string                 `json:"container-name"`
	ServerTemplateKey ServerTemplateKey      `json:"server-template-key"`
	ReleaseID         ReleaseID              `json:"release-id"`
	Configuration     map[string]interface{} `json:"configuration"`
	Status            KieContainerStatus     `json:"status"`
}

// ServerTemplate is a controller server template
type ServerTemplate struct {
	ServerID       string          `json:"server-id"`
	ServerName     string          `json:"server-name"`
	ContainerSpecs []ContainerSpec `json:"container-specs,omitempty"`
}

// ResponseType is the outcome of a Kie Server call
type ResponseType string

// Response types
const (
	ResponseSuccess    ResponseType = "SUCCESS"
	ResponseFailure    ResponseType = "FAILURE"
	ResponseNoResponse ResponseType = "NO_RESPONSE"
)

// ServiceResponse is the Kie Server envelope around most results
type ServiceResponse struct {
	Type   ResponseType    `json:"type"`
	Msg    string          `json:"msg"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Kjar fixtures deployed by the scenarios
var (
	// DefinitionProject holds the longScript process and its signals
	DefinitionProject = ReleaseID{
		GroupID:    "org.kie.server.testing",
		ArtifactID: "definition-project",
		Version:    "1.0.0.Final",
	}
)

// Fixture identifiers of the definition project
const (
	DefinitionProjectName = "definition-project"
	ProcessIDLongScript   = "definition-project.longScript"
	SignalName            = "Signal1"
	Signal2Name           = "Signal2"
	ContainerID           = "cont-id"
	ContainerAlias        = "cont-alias"
)
