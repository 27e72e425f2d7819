package fleet

import (
	"context"
	"fmt"
	"sync"

	"elasticpool/pkg/cloud"
	"elasticpool/pkg/config"
	"elasticpool/pkg/fleet/docker"
	"elasticpool/pkg/fleet/ec2"
	"elasticpool/pkg/fleet/k8s"
	"elasticpool/pkg/fleet/memory"
	"elasticpool/pkg/interfaces"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

var (
	memoryFleetOnce sync.Once
	memoryFleet     *memory.Provider
)

// CreateFleetProvider creates fleet provider
func CreateFleetProvider(ctx context.Context, cfg *config.Config) (interfaces.FleetProvider, error) {
	prefix := cfg.Fleet.NamePrefix

	switch cfg.Fleet.Provider {
	case "ec2", "":
		awsCfg, err := cloud.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		client := cloud.NewEC2Client(awsCfg, cfg.AWS.Endpoint)
		return ec2.NewProvider(client, imds.NewFromConfig(awsCfg), prefix, cfg.Fleet.EC2), nil
	case "k8s", "kubernetes":
		client, err := k8s.NewClient(cfg.Fleet.K8s.Kubeconfig)
		if err != nil {
			return nil, err
		}
		return k8s.NewProvider(client, cfg.Fleet.K8s, prefix)
	case "docker":
		client, err := docker.NewClient()
		if err != nil {
			return nil, err
		}
		return docker.NewProvider(client, prefix, cfg.Fleet.Docker)
	case "memory":
		memoryFleetOnce.Do(func() { memoryFleet = memory.NewProvider() })
		return memoryFleet, nil
	default:
		return nil, fmt.Errorf("unsupported fleet provider type: %s", cfg.Fleet.Provider)
	}
}
