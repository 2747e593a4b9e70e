package gvr

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// OpenShift workload resources
var (
	// DeploymentConfig is the GVR for OpenShift DeploymentConfig resources
	DeploymentConfig = schema.GroupVersionResource{
		Group:    "apps.openshift.io",
		Version:  "v1",
		Resource: "deploymentconfigs",
	}

	// Route is the GVR for OpenShift Route resources
	Route = schema.GroupVersionResource{
		Group:    "route.openshift.io",
		Version:  "v1",
		Resource: "routes",
	}
)

// Apps resources
var (
	// Deployment is the GVR for Deployment resources
	Deployment = schema.GroupVersionResource{
		Group:    "apps",
		Version:  "v1",
		Resource: "deployments",
	}

	// StatefulSet is the GVR for StatefulSet resources
	StatefulSet = schema.GroupVersionResource{
		Group:    "apps",
		Version:  "v1",
		Resource: "statefulsets",
	}
)

// Core resources
var (
	// Namespace is the GVR for Namespace resources
	Namespace = schema.GroupVersionResource{
		Group:    "",
		Version:  "v1",
		Resource: "namespaces",
	}

	// Pod is the GVR for Pod resources
	Pod = schema.GroupVersionResource{
		Group:    "",
		Version:  "v1",
		Resource: "pods",
	}

	// Service is the GVR for Service resources
	Service = schema.GroupVersionResource{
		Group:    "",
		Version:  "v1",
		Resource: "services",
	}
)

// KIE operator resources
var (
	// KieApp is the GVR for KIE operator KieApp custom resources
	KieApp = schema.GroupVersionResource{
		Group:    "app.kiegroup.org",
		Version:  "v2",
		Resource: "kieapps",
	}
)

// Monitoring resources
var (
	// ServiceMonitor is the GVR for Prometheus ServiceMonitor resources scraping Kie Server metrics
	ServiceMonitor = schema.GroupVersionResource{
		Group:    "monitoring.coreos.com",
		Version:  "v1",
		Resource: "servicemonitors",
	}
)

// CRD names for prerequisite checks
const (
	// KieAppCRD is the full name of the KieApp CRD installed by the KIE operator
	KieAppCRD = "kieapps.app.kiegroup.org"

	// ServiceMonitorCRD is the full name of the Prometheus operator ServiceMonitor CRD
	ServiceMonitorCRD = "servicemonitors.monitoring.coreos.com"
)

// Workload kinds a KIE deployment can be backed by
const (
	KindDeployment       = "Deployment"
	KindDeploymentConfig = "DeploymentConfig"
	KindStatefulSet      = "StatefulSet"
)

// ForKind returns the GVR backing the given workload kind
func ForKind(kind string) (schema.GroupVersionResource, bool) {
	switch kind {
	case KindDeployment:
		return Deployment, true
	case KindDeploymentConfig:
		return DeploymentConfig, true
	case KindStatefulSet:
		return StatefulSet, true
	default:
		return schema.GroupVersionResource{}, false
	}
}

// AllWorkloads returns the GVRs of every workload kind a KIE deployment can use
func AllWorkloads() []schema.GroupVersionResource {
	return []schema.GroupVersionResource{
		Deployment,
		DeploymentConfig,
		StatefulSet,
	}
}
