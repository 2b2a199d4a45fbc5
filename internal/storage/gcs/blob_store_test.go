package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "client is required")

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = New(client, Config{})
	require.ErrorContains(t, err, "bucket name is required")

	store, err := New(client, Config{Bucket: "prices", Prefix: "/streamprice/"})
	require.NoError(t, err)
	require.Equal(t, "streamprice/archive/2026/a.json", store.objectName("/archive/2026/a.json"))

	_, err = store.PutObject(context.Background(), " ", "application/json", nil)
	require.ErrorContains(t, err, "path is required")
}

func TestObjectNameWithoutPrefix(t *testing.T) {
	t.Parallel()

	store := &BlobStore{bucket: "prices"}
	require.Equal(t, "prices_latest.json", store.objectName("prices_latest.json"))
}
