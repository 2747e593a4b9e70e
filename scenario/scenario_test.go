package scenario

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kiegroup/kie-cloud-tests/test/framework"
	"github.com/kiegroup/kie-cloud-tests/test/framework/config"
	"github.com/kiegroup/kie-cloud-tests/test/kie/kietest"
	"github.com/kiegroup/kie-cloud-tests/test/kie/model"
)

func newFramework(t *testing.T) *framework.Framework {
	t.Helper()
	cfg := config.Default().WithJobTimeout(2 * time.Second)
	cfg.JobPollInterval = 5 * time.Millisecond
	fw, err := framework.New(context.Background(), "kie-test",
		framework.WithClients(fake.NewSimpleClientset(), dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())),
		framework.WithConfig(cfg))
	require.NoError(t, err)
	return fw
}

type fakeGit struct {
	mu      sync.Mutex
	created []string
	deleted []string
}

func (g *fakeGit) CreateRepository(ctx context.Context, name, sourceDir string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, name)
	return "http://gitea/gitadmin/" + name + ".git", nil
}

func (g *fakeGit) DeleteRepository(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, name)
	return nil
}

func (g *fakeGit) RepositoryURL(ctx context.Context, name string) (string, error) {
	return "http://gitea/gitadmin/" + name + ".git", nil
}

type fakeWorkbench struct {
	mu    sync.Mutex
	calls []string
	next  int
}

func (f *fakeWorkbench) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/rest/jobs/") {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"jobId":  strings.TrimPrefix(r.URL.Path, "/rest/jobs/"),
				"status": "SUCCESS",
			})
			return
		}
		f.mu.Lock()
		f.next++
		id := strconv.Itoa(f.next)
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": id, "status": "ACCEPTED"})
	})
	return mux
}

func testSettings(wbURL, kieURL string) *Settings {
	s := DefaultSettings()
	s.Namespace = "kie-test"
	s.Workbench.URL = wbURL
	s.KieServer.URL = kieURL
	s.Git.URL = "http://gitea"
	s.Project.SourceDir = "/tmp/definition-project"
	return s
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
namespace: from-file
kieServer:
  kind: Deployment
  name: kie
workbench:
  name: central
  url: https://central.example.com
container:
  id: other
`), 0o644))
	t.Setenv(EnvNamespace, "from-env")
	t.Setenv(EnvKieServerPassword, "secret")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Namespace)
	assert.Equal(t, "Deployment", s.KieServer.Kind)
	assert.Equal(t, "kie", s.KieServer.Name)
	assert.Equal(t, "secret", s.KieServer.Password)
	assert.Equal(t, "yoda", s.KieServer.Username)
	assert.Equal(t, "DeploymentConfig", s.Workbench.Kind)
	assert.Equal(t, "https://central.example.com", s.Workbench.URL)
	assert.Equal(t, "other", s.Container.ID)
	assert.Equal(t, model.ContainerAlias, s.Container.Alias)
}

func TestLoadSettings_Unconfigured(t *testing.T) {
	t.Setenv(EnvSettingsFile, "")
	t.Setenv(EnvNamespace, "")
	_, err := LoadSettings("")
	assert.ErrorIs(t, err, ErrNoSettings)
}

func TestLoadSettings_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: ns\nbogus: 1\n"), 0o644))
	_, err := LoadSettings(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "bogus"`)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.KieServer.Kind = "ReplicaSet"
	s.KieServer.Replicas = -1
	s.Project.SourceDir = "/src"
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace is required")
	assert.Contains(t, err.Error(), `kieServer.kind "ReplicaSet"`)
	assert.Contains(t, err.Error(), "kieServer.replicas must not be negative")
	assert.Contains(t, err.Error(), "git.url is required")
}

func TestDeployProjectToWorkbench(t *testing.T) {
	wb := &fakeWorkbench{}
	srv := httptest.NewServer(wb.handler())
	defer srv.Close()

	fw := newFramework(t)
	git := &fakeGit{}
	s, err := New(fw, testSettings(srv.URL, srv.URL), WithGitProvider(git))
	require.NoError(t, err)

	require.NoError(t, s.DeployProjectToWorkbench(context.Background()))
	require.Len(t, git.created, 1)
	assert.True(t, strings.HasPrefix(git.created[0], model.DefinitionProjectName+"-"))
	assert.Equal(t, []string{
		"POST /rest/spaces",
		"POST /rest/spaces/MySpace/git/clone",
		"POST /rest/spaces/MySpace/projects/definition-project/maven/deploy",
	}, wb.calls)
	assert.Equal(t, []string{
		"delete project definition-project",
		"delete space MySpace",
		"delete git repository " + git.created[0],
	}, fw.PendingReleases())

	require.NoError(t, fw.Cleanup())
	assert.Equal(t, git.created, git.deleted)
	assert.Equal(t, "DELETE /rest/spaces/MySpace/projects/definition-project", wb.calls[3])
	assert.Equal(t, "DELETE /rest/spaces/MySpace", wb.calls[4])
}

func TestDeployProjectToWorkbench_NoSources(t *testing.T) {
	fw := newFramework(t)
	settings := testSettings("http://wb", "http://kie")
	settings.Project.SourceDir = ""
	s, err := New(fw, settings, WithGitProvider(&fakeGit{}))
	require.NoError(t, err)

	require.NoError(t, s.DeployProjectToWorkbench(context.Background()))
	assert.Empty(t, fw.PendingReleases())
}

func TestReleaseContainer(t *testing.T) {
	kie := kietest.NewServer()
	defer kie.Close()

	fw := newFramework(t)
	s, err := New(fw, testSettings(kie.URL(), kie.URL()), WithGitProvider(&fakeGit{}))
	require.NoError(t, err)

	ctx := context.Background()
	ctrl, err := s.ControllerClient(ctx)
	require.NoError(t, err)
	_, err = ctrl.SaveContainerSpec(ctx, "myapp-kieserver", "myapp-kieserver", model.ContainerID, model.ContainerAlias, model.DefinitionProject, model.ContainerStarted)
	require.NoError(t, err)
	require.Equal(t, []string{model.ContainerID}, kie.Containers())

	s.ReleaseContainer(model.ContainerID)
	require.NoError(t, fw.Cleanup())
	assert.Empty(t, kie.Containers())
	assert.Empty(t, kie.ContainerSpecs())
}

func TestScenarioDeployments(t *testing.T) {
	fw := newFramework(t)
	s, err := New(fw, testSettings("http://wb", "http://kie"), WithGitProvider(&fakeGit{}))
	require.NoError(t, err)

	assert.Equal(t, "myapp-kieserver", s.KieServerDeployment().Name())
	assert.Equal(t, "myapp-rhpamcentr", s.WorkbenchDeployment().Name())

	url, err := s.KieServerDeployment().URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://kie", url)
}

func kieServerObjects(replicas int64, pods ...string) ([]runtime.Object, []runtime.Object) {
	dc := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "apps.openshift.io/v1",
		"kind":       "DeploymentConfig",
		"metadata":   map[string]interface{}{"name": "myapp-kieserver", "namespace": "kie-test"},
		"spec": map[string]interface{}{
			"replicas": replicas,
			"selector": map[string]interface{}{"deploymentConfig": "myapp-kieserver"},
		},
	}}
	var objects []runtime.Object
	for _, name := range pods {
		objects = append(objects, &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: "kie-test",
				Labels:    map[string]string{"deploymentConfig": "myapp-kieserver"},
			},
			Status: corev1.PodStatus{
				Phase:      corev1.PodRunning,
				Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
			},
		})
	}
	return []runtime.Object{dc}, objects
}

func TestScaleDeployments(t *testing.T) {
	dyn, pods := kieServerObjects(1, "myapp-kieserver-1-a", "myapp-kieserver-1-b")
	cfg := config.Default().WithScaleTimeout(time.Second).WithScalePollInterval(10 * time.Millisecond)
	fw, err := framework.New(context.Background(), "kie-test",
		framework.WithClients(fake.NewSimpleClientset(pods...), dynamicfake.NewSimpleDynamicClient(runtime.NewScheme(), dyn...)),
		framework.WithConfig(cfg))
	require.NoError(t, err)

	settings := testSettings("http://wb", "http://kie")
	settings.KieServer.Replicas = 2
	s, err := New(fw, settings, WithGitProvider(&fakeGit{}))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.ScaleDeployments(ctx))
	replicas, err := s.KieServerDeployment().Replicas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, replicas)
}

func TestScaleDeployments_Unconfigured(t *testing.T) {
	s, err := New(newFramework(t), testSettings("http://wb", "http://kie"), WithGitProvider(&fakeGit{}))
	require.NoError(t, err)
	assert.NoError(t, s.ScaleDeployments(context.Background()))
}

func TestScaleDeployments_MissingDeployment(t *testing.T) {
	settings := testSettings("http://wb", "http://kie")
	settings.KieServer.Replicas = 2
	s, err := New(newFramework(t), settings, WithGitProvider(&fakeGit{}))
	require.NoError(t, err)
	assert.ErrorIs(t, s.ScaleDeployments(context.Background()), framework.ErrDeploymentNotFound)
}
