package docstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body []byte
	etag string
}

// fakeBucket honours If-Match / If-None-Match the way R2 does.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	puts    int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]fakeObject{}}
}

func (f *fakeBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.body)),
		ETag: aws.String(obj.etag),
	}, nil
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	existing, exists := f.objects[key]

	if in.IfNoneMatch != nil && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "object exists"}
	}
	if in.IfMatch != nil && (!exists || existing.etag != aws.ToString(in.IfMatch)) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "etag mismatch"}
	}

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	sum := md5.Sum(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	f.objects[key] = fakeObject{body: body, etag: etag}
	f.puts++
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func TestR2Backend_MissingObjectIsEmpty(t *testing.T) {
	b := NewR2Backend(newFakeBucket(), "levels", "levels.json")

	doc, version, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.Equal(t, "", version)
}

func TestR2Backend_RoundTripWithETag(t *testing.T) {
	bucket := newFakeBucket()
	b := NewR2Backend(bucket, "levels", "levels.json")
	ctx := context.Background()

	doc := Document{}
	doc.EnsureUser("alice").Upsert(LevelEntry{FieldID: "9"})

	etag, err := b.Save(ctx, doc, "")
	require.NoError(t, err)

	loaded, version, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, etag, version)
	_, ok := loaded["alice"].Find("9")
	assert.True(t, ok)

	_, err = b.Save(ctx, loaded, version)
	require.NoError(t, err)
	assert.Equal(t, 2, bucket.puts)
}

func TestR2Backend_ConflictMapsToSentinel(t *testing.T) {
	b := NewR2Backend(newFakeBucket(), "levels", "levels.json")
	ctx := context.Background()

	_, err := b.Save(ctx, Document{}, "")
	require.NoError(t, err)

	_, err = b.Save(ctx, Document{}, "")
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = b.Save(ctx, Document{}, `"nope"`)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

type failingBucket struct{ *fakeBucket }

func (failingBucket) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("network down")
}

func TestR2Backend_OtherErrorsPassThrough(t *testing.T) {
	b := NewR2Backend(failingBucket{newFakeBucket()}, "levels", "levels.json")

	_, err := b.Save(context.Background(), Document{}, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVersionConflict)
	assert.Contains(t, err.Error(), "network down")
}
