package scenario

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/kiegroup/kie-cloud-tests/test/framework/gvr"
	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
)

// Environment variables overriding the settings file
const (
	EnvSettingsFile      = "KIE_CLOUD_SETTINGS"
	EnvNamespace         = "KIE_CLOUD_NAMESPACE"
	EnvKieServerName     = "KIE_CLOUD_KIESERVER_NAME"
	EnvKieServerURL      = "KIE_CLOUD_KIESERVER_URL"
	EnvKieServerUser     = "KIE_CLOUD_KIESERVER_USER"
	EnvKieServerPassword = "KIE_CLOUD_KIESERVER_PASSWORD"
	EnvWorkbenchName     = "KIE_CLOUD_WORKBENCH_NAME"
	EnvWorkbenchURL      = "KIE_CLOUD_WORKBENCH_URL"
	EnvWorkbenchUser     = "KIE_CLOUD_WORKBENCH_USER"
	EnvWorkbenchPassword = "KIE_CLOUD_WORKBENCH_PASSWORD"
	EnvGitURL            = "KIE_CLOUD_GIT_URL"
	EnvGitUser           = "KIE_CLOUD_GIT_USER"
	EnvGitPassword       = "KIE_CLOUD_GIT_PASSWORD"
	EnvProjectSourceDir  = "KIE_CLOUD_PROJECT_SOURCE_DIR"
)

// ErrNoSettings is returned when neither a settings file nor a namespace is configured
var ErrNoSettings = errors.New("no scenario settings configured")

// Endpoint locates one deployment and the credentials of its REST API
type Endpoint struct {
	Kind string `json:"kind,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	// Route exposing the REST API when its name differs from Name
	Route    string `json:"route,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// Replicas the deployment is scaled to before a run; 0 keeps the current count
	Replicas int `json:"replicas,omitempty"`
}

// GitSettings configures the Git server projects are pushed to
type GitSettings struct {
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// ProjectSettings names the Workbench project holding the process definitions
type ProjectSettings struct {
	Space     string `json:"space,omitempty"`
	Name      string `json:"name,omitempty"`
	SourceDir string `json:"sourceDir,omitempty"`
}

// ContainerSettings identifies the Kie container the project is deployed to
type ContainerSettings struct {
	ID    string `json:"id,omitempty"`
	Alias string `json:"alias,omitempty"`
}

// Settings describes an already provisioned Workbench and Kie Server deployment
type Settings struct {
	Namespace string            `json:"namespace"`
	KieServer Endpoint          `json:"kieServer"`
	Workbench Endpoint          `json:"workbench"`
	Git       GitSettings       `json:"git,omitempty"`
	Project   ProjectSettings   `json:"project,omitempty"`
	Container ContainerSettings `json:"container,omitempty"`
}

// DefaultSettings returns the names used by the persistent scenario templates
func DefaultSettings() *Settings {
	return &Settings{
		KieServer: Endpoint{
			Kind:     gvr.KindDeploymentConfig,
			Name:     "myapp-kieserver",
			Username: "yoda",
			Password: "usetheforce123@",
		},
		Workbench: Endpoint{
			Kind:     gvr.KindDeploymentConfig,
			Name:     "myapp-rhpamcentr",
			Username: "adminUser",
			Password: "adminUser1!",
		},
		Project: ProjectSettings{
			Space: "MySpace",
			Name:  model.DefinitionProjectName,
		},
		Container: ContainerSettings{
			ID:    model.ContainerID,
			Alias: model.ContainerAlias,
		},
	}
}

// LoadSettings reads path (or $KIE_CLOUD_SETTINGS when path is empty) over
// the defaults and applies environment overrides. A missing file is only
// an error when it was named explicitly.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path == "" {
		path = os.Getenv(EnvSettingsFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
	}

	s.applyEnv()
	if s.Namespace == "" {
		return nil, ErrNoSettings
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{EnvNamespace, &s.Namespace},
		{EnvKieServerName, &s.KieServer.Name},
		{EnvKieServerURL, &s.KieServer.URL},
		{EnvKieServerUser, &s.KieServer.Username},
		{EnvKieServerPassword, &s.KieServer.Password},
		{EnvWorkbenchName, &s.Workbench.Name},
		{EnvWorkbenchURL, &s.Workbench.URL},
		{EnvWorkbenchUser, &s.Workbench.Username},
		{EnvWorkbenchPassword, &s.Workbench.Password},
		{EnvGitURL, &s.Git.URL},
		{EnvGitUser, &s.Git.Username},
		{EnvGitPassword, &s.Git.Password},
		{EnvProjectSourceDir, &s.Project.SourceDir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate checks that the settings can address both deployments
func (s *Settings) Validate() error {
	var errs []error
	if s.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	for _, e := range []struct {
		role string
		ep   Endpoint
	}{{"kieServer", s.KieServer}, {"workbench", s.Workbench}} {
		if e.ep.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", e.role))
		}
		if _, ok := gvr.ForKind(e.ep.Kind); !ok {
			errs = append(errs, fmt.Errorf("%s.kind %q is not supported", e.role, e.ep.Kind))
		}
		if e.ep.Replicas < 0 {
			errs = append(errs, fmt.Errorf("%s.replicas must not be negative", e.role))
		}
	}
	if s.Project.SourceDir != "" && s.Git.URL == "" {
		errs = append(errs, errors.New("git.url is required to push project.sourceDir"))
	}
	if s.Container.ID == "" {
		errs = append(errs, errors.New("container.id is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid scenario settings: %w", errors.Join(errs...))
	}
	return nil
}
