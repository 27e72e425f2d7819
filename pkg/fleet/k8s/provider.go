package k8s

import (
	"context"
	"fmt"
	"os"
	"sort"

	"elasticpool/internal/model"
	"elasticpool/pkg/config"
	"elasticpool/pkg/constants"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	utilrand "k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/yaml"
)

// Provider fleet of worker pods in one namespace
type Provider struct {
	client    kubernetes.Interface
	namespace string
	pool      string
	template  *corev1.Pod
}

// NewClient builds a clientset, in-cluster first then kubeconfig
func NewClient(kubeconfig string) (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		// If not in cluster, try to use kubeconfig
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		if kubeconfig != "" {
			loadingRules.ExplicitPath = kubeconfig
		}
		kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
		cfg, err = kubeConfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to get kubernetes config: %v", err)
		}
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %v", err)
	}
	return client, nil
}

// NewProvider creates a pod fleet provider for the pool named prefix
func NewProvider(client kubernetes.Interface, cfg config.K8sFleetConfig, prefix string) (*Provider, error) {
	template, err := buildTemplate(cfg)
	if err != nil {
		return nil, err
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &Provider{
		client:    client,
		namespace: namespace,
		pool:      prefix,
		template:  template,
	}, nil
}

// buildTemplate loads the pod template file, or synthesizes one from image/command/env
func buildTemplate(cfg config.K8sFleetConfig) (*corev1.Pod, error) {
	if cfg.PodTemplate != "" {
		data, err := os.ReadFile(cfg.PodTemplate)
		if err != nil {
			return nil, fmt.Errorf("failed to read pod template: %v", err)
		}
		return ParsePodTemplate(data)
	}

	if cfg.Image == "" {
		return nil, fmt.Errorf("fleet.k8s.image or fleet.k8s.pod_template is required")
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: cfg.Env[k]})
	}

	return &corev1.Pod{
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:    "worker",
				Image:   cfg.Image,
				Command: cfg.Command,
				Env:     env,
			}},
		},
	}, nil
}

// ParsePodTemplate decodes a YAML pod manifest
func ParsePodTemplate(data []byte) (*corev1.Pod, error) {
	var pod corev1.Pod
	if err := yaml.Unmarshal(data, &pod); err != nil {
		return nil, fmt.Errorf("failed to parse pod template: %v", err)
	}
	if pod.Kind != "" && pod.Kind != "Pod" {
		return nil, fmt.Errorf("unsupported resource kind: %s", pod.Kind)
	}
	if len(pod.Spec.Containers) == 0 {
		return nil, fmt.Errorf("pod template has no containers")
	}
	return &pod, nil
}

func (p *Provider) poolSelector() string {
	return labels.SelectorFromSet(labels.Set{
		constants.LabelManagedBy: constants.ManagedByElasticPool,
		constants.LabelPool:      p.pool,
	}).String()
}

func unitState(pod *corev1.Pod) model.UnitState {
	if pod.DeletionTimestamp != nil {
		return model.UnitStateTerminating
	}
	switch string(pod.Status.Phase) {
	case constants.PodPhaseRunning:
		return model.UnitStateRunning
	case constants.PodPhaseSucceeded, constants.PodPhaseFailed:
		return model.UnitStateTerminated
	default:
		return model.UnitStatePending
	}
}

func toUnit(pod *corev1.Pod) *model.FleetUnit {
	return &model.FleetUnit{
		ID:         pod.Name,
		Name:       pod.Labels[constants.LabelUnitName],
		State:      unitState(pod),
		LaunchedAt: pod.CreationTimestamp.Time,
	}
}

// List lists pool pods matching filter
func (p *Provider) List(ctx context.Context, filter interfaces.UnitFilter) ([]*model.FleetUnit, error) {
	pods, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{LabelSelector: p.poolSelector()})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	var units []*model.FleetUnit
	for i := range pods.Items {
		u := toUnit(&pods.Items[i])
		if filter.Matches(u.State) {
			units = append(units, u)
		}
	}
	return units, nil
}

func (p *Provider) newPod() *corev1.Pod {
	pod := p.template.DeepCopy()
	pod.Namespace = p.namespace
	pod.Name = fmt.Sprintf("%s-%s", p.pool, utilrand.String(8))
	pod.ResourceVersion = ""

	if pod.Labels == nil {
		pod.Labels = map[string]string{}
	}
	pod.Labels[constants.LabelManagedBy] = constants.ManagedByElasticPool
	pod.Labels[constants.LabelPool] = p.pool

	// Downward API so the worker can resolve its own unit id
	container := &pod.Spec.Containers[0]
	container.Env = append(container.Env, corev1.EnvVar{
		Name: constants.EnvPodName,
		ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
		},
	})
	return pod
}

// Launch creates count pods; pods created before a failure are still returned
func (p *Provider) Launch(ctx context.Context, count int) ([]*model.FleetUnit, error) {
	pods := p.client.CoreV1().Pods(p.namespace)
	units := make([]*model.FleetUnit, 0, count)
	for i := 0; i < count; i++ {
		created, err := pods.Create(ctx, p.newPod(), metav1.CreateOptions{})
		if err != nil {
			if len(units) > 0 {
				logger.WarnCtx(ctx, "pod launch stopped after %d of %d: %v", len(units), count, err)
				return units, nil
			}
			return nil, fmt.Errorf("failed to create pod: %w", err)
		}
		units = append(units, toUnit(created))
	}
	return units, nil
}

// Tag sets the unit-name label, retrying on update conflicts
func (p *Provider) Tag(ctx context.Context, unitID string, name string) error {
	pods := p.client.CoreV1().Pods(p.namespace)
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		pod, err := pods.Get(ctx, unitID, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if pod.Labels == nil {
			pod.Labels = map[string]string{}
		}
		pod.Labels[constants.LabelUnitName] = name
		_, err = pods.Update(ctx, pod, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to tag pod %s: %w", unitID, err)
	}
	return nil
}

// Terminate deletes pods, already-gone pods are skipped
func (p *Provider) Terminate(ctx context.Context, unitIDs []string) error {
	pods := p.client.CoreV1().Pods(p.namespace)
	for _, id := range unitIDs {
		if err := pods.Delete(ctx, id, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to delete pod %s: %w", id, err)
		}
	}
	return nil
}

// SelfIdentity returns the pod name from the downward API, falling back to the hostname
func (p *Provider) SelfIdentity(ctx context.Context) (string, error) {
	if name := os.Getenv(constants.EnvPodName); name != "" {
		return name, nil
	}
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to resolve pod name: %w", err)
	}
	return host, nil
}
