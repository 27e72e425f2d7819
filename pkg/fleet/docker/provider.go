package docker

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/config"
	"elasticpool/pkg/constants"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// API is the subset of the docker client used by the provider
type API interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRename(ctx context.Context, containerID, newContainerName string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Provider fleet of local worker containers
type Provider struct {
	client API
	pool   string
	launch config.DockerFleetConfig
	now    func() time.Time
}

// NewClient connects to the docker daemon from the environment
func NewClient() (*client.Client, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return c, nil
}

// NewProvider creates a container fleet provider for the pool named prefix
func NewProvider(c API, prefix string, launch config.DockerFleetConfig) (*Provider, error) {
	if launch.Image == "" {
		return nil, fmt.Errorf("fleet.docker.image is required")
	}
	return &Provider{
		client: c,
		pool:   prefix,
		launch: launch,
		now:    time.Now,
	}, nil
}

func unitState(state container.ContainerState) model.UnitState {
	switch state {
	case container.StateCreated:
		return model.UnitStatePending
	case container.StateRunning, container.StateRestarting, container.StatePaused:
		return model.UnitStateRunning
	case container.StateRemoving:
		return model.UnitStateTerminating
	default:
		return model.UnitStateTerminated
	}
}

// List lists pool containers matching filter
func (p *Provider) List(ctx context.Context, filter interfaces.UnitFilter) ([]*model.FleetUnit, error) {
	containers, err := p.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", constants.DockerLabelManagedBy+"="+constants.ManagedByElasticPool),
			filters.Arg("label", constants.DockerLabelPool+"="+p.pool),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var units []*model.FleetUnit
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		u := &model.FleetUnit{
			ID:         c.ID,
			Name:       name,
			State:      unitState(c.State),
			LaunchedAt: time.Unix(c.Created, 0),
		}
		if filter.Matches(u.State) {
			units = append(units, u)
		}
	}
	return units, nil
}

func (p *Provider) containerConfig() (*container.Config, *container.HostConfig) {
	keys := make([]string, 0, len(p.launch.Env))
	for k := range p.launch.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+p.launch.Env[k])
	}

	cfg := &container.Config{
		Image: p.launch.Image,
		Cmd:   p.launch.Command,
		Env:   env,
		Labels: map[string]string{
			constants.DockerLabelManagedBy: constants.ManagedByElasticPool,
			constants.DockerLabelPool:      p.pool,
		},
	}
	host := &container.HostConfig{}
	if p.launch.Network != "" {
		host.NetworkMode = container.NetworkMode(p.launch.Network)
	}
	return cfg, host
}

// Launch creates and starts count containers
func (p *Provider) Launch(ctx context.Context, count int) ([]*model.FleetUnit, error) {
	units := make([]*model.FleetUnit, 0, count)
	for i := 0; i < count; i++ {
		cfg, host := p.containerConfig()
		resp, err := p.client.ContainerCreate(ctx, cfg, host, nil, nil, "")
		if err == nil {
			if err = p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
				_ = p.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
			}
		}
		if err != nil {
			if len(units) > 0 {
				logger.WarnCtx(ctx, "container launch stopped after %d of %d: %v", len(units), count, err)
				return units, nil
			}
			return nil, fmt.Errorf("failed to launch container: %w", err)
		}
		units = append(units, &model.FleetUnit{
			ID:         resp.ID,
			State:      model.UnitStateRunning,
			LaunchedAt: p.now(),
		})
	}
	return units, nil
}

// Tag renames the container
func (p *Provider) Tag(ctx context.Context, unitID string, name string) error {
	if err := p.client.ContainerRename(ctx, unitID, name); err != nil {
		return fmt.Errorf("failed to rename container %s: %w", unitID, err)
	}
	return nil
}

// Terminate force-removes containers
func (p *Provider) Terminate(ctx context.Context, unitIDs []string) error {
	for _, id := range unitIDs {
		if err := p.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("failed to remove container %s: %w", id, err)
		}
	}
	return nil
}

// SelfIdentity returns the container id docker sets as hostname
func (p *Provider) SelfIdentity(ctx context.Context) (string, error) {
	if id := os.Getenv(constants.EnvHostname); id != "" {
		return id, nil
	}
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to resolve container id: %w", err)
	}
	return host, nil
}
