package ec2

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/config"
	"elasticpool/pkg/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEC2 struct {
	pages      []*ec2.DescribeInstancesOutput
	describeIn []*ec2.DescribeInstancesInput
	runIn      *ec2.RunInstancesInput
	runOut     *ec2.RunInstancesOutput
	tagged     map[string]string
	terminated []string
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.describeIn = append(f.describeIn, params)
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeEC2) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.runIn = params
	if f.runOut == nil {
		return nil, errors.New("InsufficientInstanceCapacity")
	}
	return f.runOut, nil
}

func (f *fakeEC2) CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	if f.tagged == nil {
		f.tagged = map[string]string{}
	}
	f.tagged[params.Resources[0]] = aws.ToString(params.Tags[0].Value)
	return &ec2.CreateTagsOutput{}, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.terminated = append(f.terminated, params.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

type fakeIdentity struct{ id string }

func (f fakeIdentity) GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error) {
	return &imds.GetInstanceIdentityDocumentOutput{
		InstanceIdentityDocument: imds.InstanceIdentityDocument{InstanceID: f.id},
	}, nil
}

func instance(id string, state types.InstanceStateName, name string, launched time.Time) types.Instance {
	inst := types.Instance{
		InstanceId: aws.String(id),
		State:      &types.InstanceState{Name: state},
		LaunchTime: aws.Time(launched),
	}
	if name != "" {
		inst.Tags = []types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}}
	}
	return inst
}

func TestProvider_ListFollowsPagesAndFilters(t *testing.T) {
	t0 := time.Unix(1000, 0)
	fake := &fakeEC2{pages: []*ec2.DescribeInstancesOutput{
		{
			Reservations: []types.Reservation{{Instances: []types.Instance{
				instance("i-1", types.InstanceStateNameRunning, "worker-0", t0),
			}}},
			NextToken: aws.String("page-2"),
		},
		{
			Reservations: []types.Reservation{{Instances: []types.Instance{
				instance("i-2", types.InstanceStateNamePending, "", t0.Add(time.Minute)),
			}}},
		},
	}}
	p := NewProvider(fake, nil, "worker", config.EC2FleetConfig{})

	units, err := p.List(context.Background(), interfaces.ActiveUnits)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, &model.FleetUnit{ID: "i-1", Name: "worker-0", State: model.UnitStateRunning, LaunchedAt: t0}, units[0])
	assert.Equal(t, model.UnitStatePending, units[1].State)

	require.Len(t, fake.describeIn, 2)
	filters := fake.describeIn[0].Filters
	require.Len(t, filters, 2)
	assert.Equal(t, "tag:elasticpool:pool", aws.ToString(filters[0].Name))
	assert.Equal(t, []string{"worker"}, filters[0].Values)
	assert.Equal(t, []string{"pending", "running"}, filters[1].Values)
	assert.Equal(t, "page-2", aws.ToString(fake.describeIn[1].NextToken))
}

func TestProvider_Launch(t *testing.T) {
	fake := &fakeEC2{runOut: &ec2.RunInstancesOutput{Instances: []types.Instance{
		instance("i-9", types.InstanceStateNamePending, "", time.Unix(0, 0)),
	}}}
	p := NewProvider(fake, nil, "worker", config.EC2FleetConfig{
		AMI:              "ami-123",
		InstanceType:     "t2.micro",
		SecurityGroupIDs: []string{"sg-1"},
		InstanceProfile:  "worker-profile",
		UserData:         "#!/bin/bash\nelasticpool worker",
	})

	units, err := p.Launch(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "i-9", units[0].ID)

	in := fake.runIn
	assert.Equal(t, "ami-123", aws.ToString(in.ImageId))
	assert.Equal(t, int32(1), aws.ToInt32(in.MinCount))
	assert.Equal(t, int32(3), aws.ToInt32(in.MaxCount))
	assert.Equal(t, "worker-profile", aws.ToString(in.IamInstanceProfile.Name))
	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(in.UserData))
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "elasticpool worker")
	assert.Equal(t, "worker", aws.ToString(in.TagSpecifications[0].Tags[0].Value))
}

func TestProvider_LaunchError(t *testing.T) {
	p := NewProvider(&fakeEC2{}, nil, "worker", config.EC2FleetConfig{AMI: "ami-123"})
	_, err := p.Launch(context.Background(), 1)
	assert.Error(t, err)

	units, err := p.Launch(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestProvider_TagTerminateSelf(t *testing.T) {
	fake := &fakeEC2{}
	p := NewProvider(fake, fakeIdentity{id: "i-self"}, "worker", config.EC2FleetConfig{})
	ctx := context.Background()

	require.NoError(t, p.Tag(ctx, "i-1", "worker-4"))
	assert.Equal(t, "worker-4", fake.tagged["i-1"])

	require.NoError(t, p.Terminate(ctx, nil))
	require.NoError(t, p.Terminate(ctx, []string{"i-1", "i-2"}))
	assert.Equal(t, []string{"i-1", "i-2"}, fake.terminated)

	id, err := p.SelfIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "i-self", id)
}
