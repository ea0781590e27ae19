package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory s3API. Multipart calls are not expected for the
// small bodies used here and panic through the nil embedded interface.
type fakeS3 struct {
	s3API

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	lastMax int32
	// putDeadline records whether the last PutObject context had one.
	putDeadline bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	_, hasDeadline := ctx.Deadline()
	f.mu.Lock()
	f.putDeadline = hasDeadline
	f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(f.types[key]),
		LastModified:  aws.Time(time.Unix(0, 0).UTC()),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMax = aws.ToInt32(in.MaxKeys)

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > int(f.lastMax) {
		keys = keys[:f.lastMax]
		out.IsTruncated = aws.Bool(true)
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(f.objects[k]))),
		})
	}
	return out, nil
}

func TestS3Store_PutGetDelete(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	s := newS3Store(fake, "bucket", time.Second)
	ctx := context.Background()

	res, err := s.Put(ctx, PutInput{
		Key:         "tok_hello.txt",
		Body:        io.NopCloser(strings.NewReader("hi")),
		Size:        -1,
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok_hello.txt", res.Key)
	assert.Equal(t, `"etag"`, res.ETag)

	obj, err := s.Get(ctx, "tok_hello.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, "hi", string(data))
	assert.Equal(t, int64(2), obj.Info.Size)
	assert.Equal(t, "text/plain", obj.Info.ContentType)

	require.NoError(t, s.Delete(ctx, "tok_hello.txt"))
	require.NoError(t, s.Delete(ctx, "tok_hello.txt"), "S3 delete of an absent key succeeds")

	_, err = s.Get(ctx, "tok_hello.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_PutAccessDenied(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.putErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
	s := newS3Store(fake, "bucket", 0)

	_, err := s.Put(context.Background(), PutInput{Key: "k", Body: strings.NewReader("x"), Size: 1})
	require.Error(t, err)
	assert.Equal(t, KindAccessDenied, KindOf(err))
}

func TestS3Store_List(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	s := newS3Store(fake, "bucket", 0)
	ctx := context.Background()

	for _, k := range []string{"a/3", "a/1", "a/2", "b/1"} {
		_, err := s.Put(ctx, PutInput{Key: k, Body: strings.NewReader(k), Size: int64(len(k))})
		require.NoError(t, err)
	}

	res, err := s.List(ctx, ListInput{Prefix: "a/", MaxKeys: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.lastMax)
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Truncated)
	assert.Equal(t, "a/1", res.Objects[0].Key)
	assert.Equal(t, "a/2", res.Objects[1].Key)

	_, err = s.List(ctx, ListInput{MaxKeys: -5})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.List(ctx, ListInput{MaxKeys: 0})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestS3Store_PutUsesUploadTimeout(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	s := newS3Store(fake, "bucket", time.Millisecond)
	ctx := context.Background()

	_, err := s.Put(ctx, PutInput{Key: "k", Body: strings.NewReader("x"), Size: -1})
	require.NoError(t, err)
	assert.False(t, fake.putDeadline, "the call timeout must not bound the body transfer")

	s.uploadTimeout = time.Hour
	_, err = s.Put(ctx, PutInput{Key: "k", Body: strings.NewReader("x"), Size: -1})
	require.NoError(t, err)
	assert.True(t, fake.putDeadline)
}

func TestS3Store_EmptyKey(t *testing.T) {
	t.Parallel()

	s := newS3Store(newFakeS3(), "bucket", 0)
	_, err := s.Get(context.Background(), "")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}
