package ec2

import (
	"context"
	"encoding/base64"
	"fmt"

	"elasticpool/internal/model"
	"elasticpool/pkg/config"
	"elasticpool/pkg/constants"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// API is the subset of the EC2 client used by the provider
type API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// IdentityAPI reads the instance identity document from the metadata service
type IdentityAPI interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
}

// Provider fleet of EC2 instances sharing a pool tag
type Provider struct {
	client   API
	identity IdentityAPI
	pool     string
	launch   config.EC2FleetConfig
}

// NewProvider creates an EC2 fleet provider for the pool named prefix
func NewProvider(client API, identity IdentityAPI, prefix string, launch config.EC2FleetConfig) *Provider {
	return &Provider{
		client:   client,
		identity: identity,
		pool:     prefix,
		launch:   launch,
	}
}

var stateFilterValues = map[model.UnitState][]string{
	model.UnitStatePending:     {string(types.InstanceStateNamePending)},
	model.UnitStateRunning:     {string(types.InstanceStateNameRunning)},
	model.UnitStateTerminating: {string(types.InstanceStateNameShuttingDown), string(types.InstanceStateNameStopping)},
	model.UnitStateTerminated:  {string(types.InstanceStateNameTerminated), string(types.InstanceStateNameStopped)},
}

func unitState(state *types.InstanceState) model.UnitState {
	if state == nil {
		return model.UnitStatePending
	}
	switch state.Name {
	case types.InstanceStateNamePending:
		return model.UnitStatePending
	case types.InstanceStateNameRunning:
		return model.UnitStateRunning
	case types.InstanceStateNameShuttingDown, types.InstanceStateNameStopping:
		return model.UnitStateTerminating
	default:
		return model.UnitStateTerminated
	}
}

func tagValue(tags []types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

func toUnit(inst types.Instance) *model.FleetUnit {
	return &model.FleetUnit{
		ID:         aws.ToString(inst.InstanceId),
		Name:       tagValue(inst.Tags, constants.EC2TagName),
		State:      unitState(inst.State),
		LaunchedAt: aws.ToTime(inst.LaunchTime),
	}
}

// List lists pool instances matching filter
func (p *Provider) List(ctx context.Context, filter interfaces.UnitFilter) ([]*model.FleetUnit, error) {
	filters := []types.Filter{
		{Name: aws.String("tag:" + constants.EC2TagPool), Values: []string{p.pool}},
	}
	if len(filter.States) > 0 {
		var values []string
		for _, s := range filter.States {
			values = append(values, stateFilterValues[s]...)
		}
		filters = append(filters, types.Filter{Name: aws.String("instance-state-name"), Values: values})
	}

	var units []*model.FleetUnit
	paginator := ec2.NewDescribeInstancesPaginator(p.client, &ec2.DescribeInstancesInput{Filters: filters})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				u := toUnit(inst)
				if filter.Matches(u.State) {
					units = append(units, u)
				}
			}
		}
	}
	return units, nil
}

// Launch runs up to count instances, EC2 may return fewer on capacity shortfall
func (p *Provider) Launch(ctx context.Context, count int) ([]*model.FleetUnit, error) {
	if count <= 0 {
		return nil, nil
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(p.launch.AMI),
		InstanceType: types.InstanceType(p.launch.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(int32(count)),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags: []types.Tag{
				{Key: aws.String(constants.EC2TagPool), Value: aws.String(p.pool)},
			},
		}},
	}
	if p.launch.KeyName != "" {
		input.KeyName = aws.String(p.launch.KeyName)
	}
	if len(p.launch.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = p.launch.SecurityGroupIDs
	}
	if p.launch.SubnetID != "" {
		input.SubnetId = aws.String(p.launch.SubnetID)
	}
	if p.launch.InstanceProfile != "" {
		input.IamInstanceProfile = &types.IamInstanceProfileSpecification{Name: aws.String(p.launch.InstanceProfile)}
	}
	if p.launch.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(p.launch.UserData)))
	}

	out, err := p.client.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run instances: %w", err)
	}

	units := make([]*model.FleetUnit, 0, len(out.Instances))
	for _, inst := range out.Instances {
		units = append(units, toUnit(inst))
	}
	if len(units) < count {
		logger.WarnCtx(ctx, "requested %d instances, ec2 launched %d", count, len(units))
	}
	return units, nil
}

// Tag sets the Name tag of an instance
func (p *Provider) Tag(ctx context.Context, unitID string, name string) error {
	_, err := p.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{unitID},
		Tags:      []types.Tag{{Key: aws.String(constants.EC2TagName), Value: aws.String(name)}},
	})
	if err != nil {
		return fmt.Errorf("failed to tag instance %s: %w", unitID, err)
	}
	return nil
}

// Terminate terminates instances
func (p *Provider) Terminate(ctx context.Context, unitIDs []string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	_, err := p.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: unitIDs})
	if err != nil {
		return fmt.Errorf("failed to terminate instances %v: %w", unitIDs, err)
	}
	return nil
}

// SelfIdentity reads this instance's id from the metadata service
func (p *Provider) SelfIdentity(ctx context.Context) (string, error) {
	if p.identity == nil {
		return "", fmt.Errorf("instance metadata client not configured")
	}
	doc, err := p.identity.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return "", fmt.Errorf("failed to read instance identity: %w", err)
	}
	return doc.InstanceID, nil
}
