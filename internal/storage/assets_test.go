package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelforge/internal/config"
)

type fakeObjects struct {
	puts    map[string][]byte
	types   map[string]string
	deleted []string
	err     error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{puts: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts[aws.ToString(in.Key)] = body
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestUploadAndDelete(t *testing.T) {
	api := newFakeObjects()
	store := newAssetStore(api, &config.AssetsConfig{Bucket: "assets", PublicBaseURL: "https://cdn.example.com/"})

	slide, err := store.Upload(context.Background(), []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Regexp(t, `^projects/[0-9a-f-]{36}$`, slide.PublicID)
	assert.Equal(t, "https://cdn.example.com/"+slide.PublicID, slide.URL)
	assert.Equal(t, []byte("png-bytes"), api.puts[slide.PublicID])
	assert.Equal(t, "image/png", api.types[slide.PublicID])

	require.NoError(t, store.Delete(context.Background(), slide.PublicID))
	assert.Equal(t, []string{slide.PublicID}, api.deleted)
}

func TestDeleteOutsidePrefixIsRefused(t *testing.T) {
	api := newFakeObjects()
	store := newAssetStore(api, &config.AssetsConfig{Bucket: "assets"})

	assert.Error(t, store.Delete(context.Background(), "backups/db.sql"))
	assert.Empty(t, api.deleted)
}

func TestUploadError(t *testing.T) {
	api := newFakeObjects()
	api.err = errors.New("access denied")
	store := newAssetStore(api, &config.AssetsConfig{Bucket: "assets"})

	_, err := store.Upload(context.Background(), []byte("x"), "image/jpeg")
	assert.ErrorContains(t, err, "access denied")
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000/assets", publicBaseURL(&config.AssetsConfig{Endpoint: "http://minio:9000/", Bucket: "assets"}))
	assert.Equal(t, "https://assets.s3.eu-west-1.amazonaws.com", publicBaseURL(&config.AssetsConfig{Bucket: "assets", Region: "eu-west-1"}))
}
