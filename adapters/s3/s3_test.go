package s3_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsboard/adapters/s3"
	"winsboard/wins"
)

type object struct {
	body     string
	metadata map[string]string
}

// fakeObjectAPI 是記憶體內的 S3 object 儲存
type fakeObjectAPI struct {
	mu      sync.Mutex
	objects map[string]object
	err     error
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: make(map[string]object)}
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = object{body: string(body), metadata: params.Metadata}
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) GetObject(ctx context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	obj, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &awss3.GetObjectOutput{
		Body:     io.NopCloser(strings.NewReader(obj.body)),
		Metadata: obj.metadata,
	}, nil
}

func (f *fakeObjectAPI) DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func TestNewBlobStore(t *testing.T) {
	_, err := s3.NewBlobStore(nil, "bucket")
	assert.ErrorContains(t, err, "client cannot be nil")
	_, err = s3.NewBlobStore(newFakeObjectAPI(), "")
	assert.ErrorContains(t, err, "bucket cannot be empty")
}

func TestBlobStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjectAPI()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store, err := s3.NewBlobStore(api, "bucket", s3.WithBlobClock(func() time.Time { return now }))
	require.NoError(t, err)

	id, err := store.Put(ctx, "payload")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "img_"))

	obj, ok := api.objects["bucket/wins-image/"+id]
	require.True(t, ok)
	assert.Equal(t, "2024-03-31T00:00:00Z", obj.metadata[s3.ExpiresAtMetadata])

	payload, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "payload", payload)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, wins.ErrNotFound)
}

func TestBlobStore_Expiry(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjectAPI()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store, err := s3.NewBlobStore(api, "bucket",
		s3.WithBlobPrefix("images/"),
		s3.WithBlobTTL(time.Hour),
		s3.WithBlobClock(func() time.Time { return now }))
	require.NoError(t, err)

	id, err := store.Put(ctx, "payload")
	require.NoError(t, err)
	_, ok := api.objects["bucket/images/"+id]
	require.True(t, ok)

	now = now.Add(time.Hour - time.Second)
	_, err = store.Get(ctx, id)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, wins.ErrNotFound)

	t.Run("objects without metadata never expire", func(t *testing.T) {
		api.objects["bucket/images/legacy"] = object{body: "old"}
		payload, err := store.Get(ctx, "legacy")
		require.NoError(t, err)
		assert.Equal(t, "old", payload)
	})
}

func TestBlobStore_MaxObjectSize(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjectAPI()
	store, err := s3.NewBlobStore(api, "bucket", s3.WithMaxObjectSize(4))
	require.NoError(t, err)

	id, err := store.Put(ctx, "too large")
	require.NoError(t, err)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, wins.ErrStorageFailure)
	assert.ErrorAs(t, err, &s3.ErrReachLimitType)
}

func TestBlobStore_Failures(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjectAPI()
	store, err := s3.NewBlobStore(api, "bucket")
	require.NoError(t, err)

	api.err = &smithy.GenericAPIError{Code: "InternalError", Message: "boom"}
	id, err := store.Put(ctx, "payload")
	assert.ErrorIs(t, err, wins.ErrStorageFailure)
	assert.Empty(t, id)

	_, err = store.Get(ctx, "img_1")
	assert.ErrorIs(t, err, wins.ErrStorageFailure)
	assert.NotErrorIs(t, err, wins.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "img_1"), wins.ErrStorageFailure)

	api.err = &smithy.GenericAPIError{Code: "NotFound"}
	_, err = store.Get(ctx, "img_1")
	assert.ErrorIs(t, err, wins.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "img_1"))

	api.err = errors.New("dial tcp: connection refused")
	_, err = store.Get(ctx, "img_1")
	assert.ErrorIs(t, err, wins.ErrStorageFailure)
}
