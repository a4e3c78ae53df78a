package upload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "12345", "shifts.str", []byte("loop_")))
	require.NoError(t, s.Put(ctx, "12345", "/peaks/a.txt", []byte("1 2 3")))
	require.NoError(t, s.Put(ctx, "99", "other.str", []byte("x")))

	got, err := s.Get(ctx, "12345", "shifts.str")
	require.NoError(t, err)
	assert.Equal(t, []byte("loop_"), got)
	got[0] = 'X'
	again, _ := s.Get(ctx, "12345", "shifts.str")
	assert.Equal(t, []byte("loop_"), again)

	names, err := s.List(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, []string{"peaks/a.txt", "shifts.str"}, names)

	require.NoError(t, s.Delete(ctx, "12345", "shifts.str"))
	_, err = s.Get(ctx, "12345", "shifts.str")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "12345", "shifts.str"), ErrNotFound)
}

func TestKeysRequireBothParts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	assert.Error(t, s.Put(ctx, " ", "a", nil))
	assert.Error(t, s.Put(ctx, "1", "/", nil))
	_, err := s.List(ctx, "")
	assert.Error(t, err)
}

func TestNewS3StoreValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
	}{
		{"no endpoint", S3Config{AccessKey: "a", SecretKey: "b", Bucket: "c"}},
		{"no credentials", S3Config{Endpoint: "minio:9000", Bucket: "c"}},
		{"no bucket", S3Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Store(tt.cfg)
			assert.Error(t, err)
		})
	}

	s, err := NewS3Store(S3Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b", Bucket: "uploads"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)
}
