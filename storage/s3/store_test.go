package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient keeps objects in memory and pages listings two at a time.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	buckets []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets = append(f.buckets, aws.ToString(in.Bucket))
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := start + 2
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestStore_SaveLoad(t *testing.T) {
	client := newFakeClient()
	store := NewWithClient(client, "notes", "notegen")
	ctx := context.Background()

	_, err := store.Load(ctx, "ledger")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Save(ctx, "ledger", []byte(`{"version":1}`)))
	assert.Contains(t, client.objects, "notegen/ledger", "prefix gets a trailing slash")

	data, err := store.Load(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))
	assert.Equal(t, "notes", client.buckets[0])
}

func TestStore_SaveError(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("AccessDenied")
	store := NewWithClient(client, "notes", "")

	err := store.Save(context.Background(), "ledger", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object ledger")
}

func TestStore_KeysPaginates(t *testing.T) {
	client := newFakeClient()
	store := NewWithClient(client, "notes", "ng/")
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.Save(ctx, k, []byte(k)))
	}
	client.objects["other/z"] = []byte("z")

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys)
}

func TestStore_InvalidKey(t *testing.T) {
	store := NewWithClient(newFakeClient(), "notes", "")
	assert.ErrorIs(t, store.Save(context.Background(), "", nil), storage.ErrInvalidKey)
	assert.NoError(t, store.Close())
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket required")
}

func TestNew_StaticCredentials(t *testing.T) {
	store, err := New(context.Background(), Config{
		Bucket:          "notes",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		PathStyle:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "notes", store.bucket)
}
