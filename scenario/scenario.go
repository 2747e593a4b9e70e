// Package scenario attaches to a provisioned Workbench and Kie Server
// deployment and hands out the clients and deployment handles tests drive.
package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/framework/deployment"
	"github.com/kiegroup/kie-cloud-tests/test/framework/process"
	"github.com/kiegroup/kie-cloud-tests/test/gitrepo"
	"github.com/kiegroup/kie-cloud-tests/test/kie/controller"
	"github.com/kiegroup/kie-cloud-tests/test/kie/rest"
	"github.com/kiegroup/kie-cloud-tests/test/kie/server"
	"github.com/kiegroup/kie-cloud-tests/test/kie/workbench"
)

// Framework is what a scenario needs from the test framework
type Framework = framework.FrameworkOperations

// WorkbenchKieServerPersistent is a Business Central workbench acting as
// controller for a Kie Server, both backed by a database.
type WorkbenchKieServerPersistent struct {
	fw        Framework
	settings  *Settings
	workbench *deployment.Deployment
	kieServer *deployment.Deployment
	git       gitrepo.Provider
	logger    *slog.Logger
}

// Option configures a scenario
type Option func(*WorkbenchKieServerPersistent)

// WithGitProvider replaces the Gitea provider built from the settings
func WithGitProvider(p gitrepo.Provider) Option {
	return func(s *WorkbenchKieServerPersistent) {
		s.git = p
	}
}

// New attaches to the deployments named in settings
func New(fw Framework, settings *Settings, opts ...Option) (*WorkbenchKieServerPersistent, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &WorkbenchKieServerPersistent{fw: fw, settings: settings, logger: fw.Logger()}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.workbench, err = newDeployment(fw, settings.Workbench); err != nil {
		return nil, err
	}
	if s.kieServer, err = newDeployment(fw, settings.KieServer); err != nil {
		return nil, err
	}

	if s.git == nil && settings.Git.URL != "" {
		s.git, err = gitrepo.NewGitea(gitrepo.GiteaConfig{
			URL:      settings.Git.URL,
			Username: settings.Git.Username,
			Password: settings.Git.Password,
			Logger:   s.logger,
		}, func(dir string, env []string) gitrepo.Runner {
			return process.NewExecutor(s.logger, process.WithDir(dir), process.WithEnv(env...))
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newDeployment(fw Framework, ep Endpoint) (*deployment.Deployment, error) {
	var opts []deployment.Option
	if ep.URL != "" {
		opts = append(opts, deployment.WithURL(ep.URL))
	}
	if ep.Route != "" {
		opts = append(opts, deployment.WithRoute(ep.Route))
	}
	return deployment.New(fw, ep.Kind, ep.Name, opts...)
}

// Settings returns the scenario settings
func (s *WorkbenchKieServerPersistent) Settings() *Settings {
	return s.settings
}

// WorkbenchDeployment returns the Business Central deployment
func (s *WorkbenchKieServerPersistent) WorkbenchDeployment() *deployment.Deployment {
	return s.workbench
}

// KieServerDeployment returns the Kie Server deployment
func (s *WorkbenchKieServerPersistent) KieServerDeployment() *deployment.Deployment {
	return s.kieServer
}

func (s *WorkbenchKieServerPersistent) restConfig(ctx context.Context, d *deployment.Deployment, ep Endpoint) (rest.Config, error) {
	url, err := d.URL(ctx)
	if err != nil {
		return rest.Config{}, err
	}
	return rest.Config{
		BaseURL:            url,
		Username:           ep.Username,
		Password:           ep.Password,
		Timeout:            s.fw.FrameworkConfig().HTTPTimeout,
		InsecureSkipVerify: true,
		Logger:             s.logger,
	}, nil
}

// KieServerClient returns a client bound to the Kie Server endpoint
func (s *WorkbenchKieServerPersistent) KieServerClient(ctx context.Context) (*server.Client, error) {
	cfg, err := s.restConfig(ctx, s.kieServer, s.settings.KieServer)
	if err != nil {
		return nil, err
	}
	return server.NewClient(cfg)
}

// ControllerClient returns a client for the controller embedded in the workbench
func (s *WorkbenchKieServerPersistent) ControllerClient(ctx context.Context) (*controller.Client, error) {
	cfg, err := s.restConfig(ctx, s.workbench, s.settings.Workbench)
	if err != nil {
		return nil, err
	}
	return controller.NewClient(cfg)
}

// WorkbenchClient returns a client for the workbench project API
func (s *WorkbenchKieServerPersistent) WorkbenchClient(ctx context.Context) (*workbench.Client, error) {
	cfg, err := s.restConfig(ctx, s.workbench, s.settings.Workbench)
	if err != nil {
		return nil, err
	}
	fc := s.fw.FrameworkConfig()
	return workbench.NewClient(cfg, workbench.WithJobTimeout(fc.JobTimeout, fc.JobPollInterval))
}

// ScaleDeployments scales the Workbench and the Kie Server to the replicas
// configured in the settings and waits for them. Deployments without a
// configured count or already at it are left alone.
func (s *WorkbenchKieServerPersistent) ScaleDeployments(ctx context.Context) error {
	for _, target := range []struct {
		d        *deployment.Deployment
		replicas int
	}{
		{s.workbench, s.settings.Workbench.Replicas},
		{s.kieServer, s.settings.KieServer.Replicas},
	} {
		if target.replicas == 0 {
			continue
		}
		current, err := target.d.Replicas(ctx)
		if err != nil {
			return err
		}
		if current == target.replicas {
			continue
		}
		s.logger.Info("scaling deployment", "name", target.d.Name(), "from", current, "to", target.replicas)
		if err := target.d.Scale(ctx, target.replicas); err != nil {
			return err
		}
	}
	return nil
}

// DeployProjectToWorkbench pushes the project sources to a fresh Git
// repository, imports it into a workbench space and deploys its Kjar to
// the workbench Maven repository. Every created resource is released by
// the framework cleanup. Without a configured source directory the Kjar is
// expected to be deployed already and nothing is done.
func (s *WorkbenchKieServerPersistent) DeployProjectToWorkbench(ctx context.Context) error {
	project := s.settings.Project
	if project.SourceDir == "" {
		s.logger.Info("no project sources configured, using the deployed Kjar", "project", project.Name)
		return nil
	}
	if s.git == nil {
		return fmt.Errorf("no git provider configured for project %s", project.Name)
	}

	repoName := gitrepo.GenerateName(project.Name)
	gitURL, err := s.git.CreateRepository(ctx, repoName, project.SourceDir)
	if err != nil {
		return err
	}
	s.fw.Defer("delete git repository "+repoName, func(ctx context.Context) error {
		return s.git.DeleteRepository(ctx, repoName)
	})

	wb, err := s.WorkbenchClient(ctx)
	if err != nil {
		return err
	}

	if err := wb.CreateSpace(ctx, project.Space); err != nil {
		return err
	}
	s.fw.Defer("delete space "+project.Space, func(ctx context.Context) error {
		return wb.DeleteSpace(ctx, project.Space)
	})

	git := s.settings.Git
	if err := wb.CloneRepository(ctx, project.Space, project.Name, gitURL, git.Username, git.Password); err != nil {
		return err
	}
	s.fw.Defer("delete project "+project.Name, func(ctx context.Context) error {
		return wb.DeleteProject(ctx, project.Space, project.Name)
	})

	s.logger.Info("deploying project", "space", project.Space, "project", project.Name, "repository", gitURL)
	return wb.DeployProject(ctx, project.Space, project.Name)
}

// ReleaseContainer registers the removal of containerID from the
// controller and the Kie Server on the framework cleanup. Missing specs and
// containers are not errors.
func (s *WorkbenchKieServerPersistent) ReleaseContainer(containerID string) {
	s.fw.Defer("dispose container "+containerID, func(ctx context.Context) error {
		kie, err := s.KieServerClient(ctx)
		if err != nil {
			return err
		}
		info, err := kie.GetServerInfo(ctx)
		if err != nil {
			return err
		}
		ctrl, err := s.ControllerClient(ctx)
		if err != nil {
			return err
		}
		if err := ctrl.DeleteContainerSpec(ctx, info.ServerID, containerID); err != nil {
			return err
		}
		return kie.DisposeContainer(ctx, containerID)
	})
}
