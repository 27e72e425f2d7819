package docker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/config"
	"elasticpool/pkg/constants"
	"elasticpool/pkg/interfaces"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	listOpts  container.ListOptions
	summaries []container.Summary
	created   []*container.Config
	hosts     []*container.HostConfig
	started   []string
	renamed   map[string]string
	removed   []string
	startErr  error
}

func (f *fakeDocker) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	f.listOpts = options
	return f.summaries, nil
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.created = append(f.created, config)
	f.hosts = append(f.hosts, hostConfig)
	return container.CreateResponse{ID: fmt.Sprintf("c%d", len(f.created))}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeDocker) ContainerRename(ctx context.Context, containerID, newContainerName string) error {
	if f.renamed == nil {
		f.renamed = map[string]string{}
	}
	f.renamed[containerID] = newContainerName
	return nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func TestProvider_List(t *testing.T) {
	fake := &fakeDocker{summaries: []container.Summary{
		{ID: "c1", Names: []string{"/worker-0"}, State: container.StateRunning, Created: 100},
		{ID: "c2", State: container.StateCreated, Created: 200},
		{ID: "c3", State: container.StateExited, Created: 50},
	}}
	p, err := NewProvider(fake, "worker", config.DockerFleetConfig{Image: "classifier:latest"})
	require.NoError(t, err)

	units, err := p.List(context.Background(), interfaces.ActiveUnits)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, &model.FleetUnit{ID: "c1", Name: "worker-0", State: model.UnitStateRunning, LaunchedAt: time.Unix(100, 0)}, units[0])
	assert.Equal(t, model.UnitStatePending, units[1].State)

	assert.True(t, fake.listOpts.All)
	assert.True(t, fake.listOpts.Filters.ExactMatch("label", constants.DockerLabelPool+"=worker"))
}

func TestProvider_LaunchTagTerminate(t *testing.T) {
	fake := &fakeDocker{}
	p, err := NewProvider(fake, "worker", config.DockerFleetConfig{
		Image:   "classifier:latest",
		Command: []string{"elasticpool", "worker"},
		Env:     map[string]string{"QUEUE": "req", "BLOB": "redis"},
		Network: "pool-net",
	})
	require.NoError(t, err)
	ctx := context.Background()

	units, err := p.Launch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, []string{"c1", "c2"}, fake.started)
	assert.Equal(t, []string{"BLOB=redis", "QUEUE=req"}, fake.created[0].Env)
	assert.Equal(t, "worker", fake.created[0].Labels[constants.DockerLabelPool])
	assert.Equal(t, container.NetworkMode("pool-net"), fake.hosts[0].NetworkMode)

	require.NoError(t, p.Tag(ctx, "c1", "worker-0"))
	assert.Equal(t, "worker-0", fake.renamed["c1"])

	require.NoError(t, p.Terminate(ctx, []string{"c1", "c2"}))
	assert.Equal(t, []string{"c1", "c2"}, fake.removed)
}

func TestProvider_LaunchStartFailureRemovesContainer(t *testing.T) {
	fake := &fakeDocker{startErr: errors.New("no such image")}
	p, err := NewProvider(fake, "worker", config.DockerFleetConfig{Image: "missing"})
	require.NoError(t, err)

	_, err = p.Launch(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, []string{"c1"}, fake.removed)
}

func TestProvider_SelfIdentity(t *testing.T) {
	p, err := NewProvider(&fakeDocker{}, "worker", config.DockerFleetConfig{Image: "classifier:latest"})
	require.NoError(t, err)
	t.Setenv(constants.EnvHostname, "3f4e5d6c7b8a")

	id, err := p.SelfIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3f4e5d6c7b8a", id)
}

func TestNewProvider_RequiresImage(t *testing.T) {
	_, err := NewProvider(&fakeDocker{}, "worker", config.DockerFleetConfig{})
	assert.Error(t, err)
}
