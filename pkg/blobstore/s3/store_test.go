package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"elasticpool/pkg/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	getErr  error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestStore_PutGet(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := NewStore(fake, "in-bucket")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "cat1.jpg", []byte("jpeg")))
	assert.Contains(t, fake.objects, "in-bucket/cat1.jpg")

	got, err := s.Get(ctx, "cat1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(got))
}

func TestStore_MissingKey(t *testing.T) {
	s := NewStore(&fakeS3{objects: map[string][]byte{}}, "in-bucket")
	_, err := s.Get(context.Background(), "nope.jpg")
	assert.ErrorIs(t, err, interfaces.ErrBlobNotFound)
}

func TestStore_TransientError(t *testing.T) {
	s := NewStore(&fakeS3{getErr: errors.New("throttled")}, "in-bucket")
	_, err := s.Get(context.Background(), "cat1.jpg")
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrBlobNotFound)
}
