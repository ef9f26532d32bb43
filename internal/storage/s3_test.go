package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/config"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/videos/a.mp4",
		objectURL("https://cdn.example.com", "https://acc.r2.cloudflarestorage.com", "shorts", "videos/a.mp4", false))
	assert.Equal(t, "http://minio:9000/shorts/videos/a.mp4",
		objectURL("", "http://minio:9000", "shorts", "videos/a.mp4", true))
	assert.Equal(t, "https://shorts.acc.r2.cloudflarestorage.com/videos/a.mp4",
		objectURL("", "https://acc.r2.cloudflarestorage.com", "shorts", "videos/a.mp4", false))
	assert.Equal(t, "https://shorts.s3.amazonaws.com/videos/a.mp4",
		objectURL("", "", "shorts", "videos/a.mp4", false))
}

func TestNewS3UploaderDisabledWithoutBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), config.StorageConfig{})
	require.ErrorIs(t, err, ErrDisabled)
}
