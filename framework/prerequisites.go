package framework

import (
	"context"
	"fmt"

	"github.com/kiegroup/kie-cloud-tests/test/framework/gvr"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// WorkloadRef names a workload the scenario expects to find
type WorkloadRef struct {
	Kind string
	Name string
}

// PrerequisiteStatus represents the status of a single prerequisite
type PrerequisiteStatus struct {
	Name      string
	Installed bool
	Message   string
}

// PrerequisitesResult contains the results of all prerequisite checks
type PrerequisitesResult struct {
	Namespace   PrerequisiteStatus
	Workloads   []PrerequisiteStatus
	KieOperator PrerequisiteStatus
	AllMet      bool
}

// CheckPrerequisites verifies that the scenario namespace and the given
// workloads exist. The KIE operator CRD is reported but never required,
// since template based scenarios run without it.
func (f *Framework) CheckPrerequisites(ctx context.Context, workloads ...WorkloadRef) (*PrerequisitesResult, error) {
	result := &PrerequisitesResult{AllMet: true}

	exists, err := f.NamespaceExists(ctx)
	if err != nil {
		return nil, err
	}
	result.Namespace = PrerequisiteStatus{Name: "Namespace " + f.namespace, Installed: exists, Message: "found"}
	if !exists {
		result.Namespace.Message = "not found"
		result.AllMet = false
	}

	for _, w := range workloads {
		status := f.checkWorkload(ctx, w)
		if !status.Installed {
			result.AllMet = false
		}
		result.Workloads = append(result.Workloads, status)
	}

	apiextClient, err := f.apiExtensionsClient()
	if err != nil {
		result.KieOperator = PrerequisiteStatus{Name: "KIE Operator", Message: err.Error()}
	} else {
		result.KieOperator = checkCRDs(ctx, apiextClient, "KIE Operator", []string{gvr.KieAppCRD})
	}

	return result, nil
}

// RequirePrerequisites runs CheckPrerequisites and converts the first unmet
// requirement into a PrerequisiteError.
func (f *Framework) RequirePrerequisites(ctx context.Context, workloads ...WorkloadRef) error {
	result, err := f.CheckPrerequisites(ctx, workloads...)
	if err != nil {
		return err
	}
	if !result.Namespace.Installed {
		return NewPrerequisiteError(result.Namespace.Name, ErrNamespaceNotFound)
	}
	for _, w := range result.Workloads {
		if !w.Installed {
			return NewPrerequisiteError(w.Name, fmt.Errorf("%w: %s", ErrDeploymentNotFound, w.Message))
		}
	}
	return nil
}

func (f *Framework) checkWorkload(ctx context.Context, w WorkloadRef) PrerequisiteStatus {
	status := PrerequisiteStatus{Name: w.Kind + " " + w.Name}

	resource, ok := gvr.ForKind(w.Kind)
	if !ok {
		status.Message = "unsupported kind"
		return status
	}

	_, err := f.dynamicClient.Resource(resource).Namespace(f.namespace).Get(ctx, w.Name, metav1.GetOptions{})
	switch {
	case err == nil:
		status.Installed = true
		status.Message = "found"
	case apierrors.IsNotFound(err):
		status.Message = "not found"
	default:
		status.Message = err.Error()
	}
	return status
}

func (f *Framework) apiExtensionsClient() (apiextensionsclient.Interface, error) {
	if f.apiextClient != nil {
		return f.apiextClient, nil
	}
	if f.restConfig == nil {
		return nil, fmt.Errorf("no REST config available")
	}
	client, err := apiextensionsclient.NewForConfig(f.restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create apiextensions client: %w", err)
	}
	return client, nil
}

// checkCRDs verifies that all required CRDs for an operator are installed
func checkCRDs(ctx context.Context, client apiextensionsclient.Interface, operatorName string, crds []string) PrerequisiteStatus {
	status := PrerequisiteStatus{
		Name:      operatorName,
		Installed: true,
	}

	var missing []string
	var found []string

	for _, crdName := range crds {
		crd, err := client.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, crdName, metav1.GetOptions{})
		if err != nil {
			missing = append(missing, crdName)
			status.Installed = false
			continue
		}

		if !isCRDEstablished(crd) {
			missing = append(missing, crdName+" (not established)")
			status.Installed = false
			continue
		}

		found = append(found, crdName)
	}

	if status.Installed {
		status.Message = fmt.Sprintf("All CRDs found: %v", found)
	} else {
		status.Message = fmt.Sprintf("Missing CRDs: %v", missing)
	}

	return status
}

// isCRDEstablished checks if the CRD has the Established condition set to True
func isCRDEstablished(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, cond := range crd.Status.Conditions {
		if cond.Type == apiextensionsv1.Established && cond.Status == apiextensionsv1.ConditionTrue {
			return true
		}
	}
	return false
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// String returns a human-readable summary of the prerequisites result
func (r *PrerequisitesResult) String() string {
	s := "Prerequisites Check:\n"
	s += fmt.Sprintf("  %s %s: %s\n", mark(r.Namespace.Installed), r.Namespace.Name, r.Namespace.Message)
	for _, w := range r.Workloads {
		s += fmt.Sprintf("  %s %s: %s\n", mark(w.Installed), w.Name, w.Message)
	}
	s += fmt.Sprintf("  %s %s (optional): %s\n", mark(r.KieOperator.Installed), r.KieOperator.Name, r.KieOperator.Message)
	s += fmt.Sprintf("  All prerequisites met: %v", r.AllMet)
	return s
}
