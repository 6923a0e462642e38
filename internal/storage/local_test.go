package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	p, err := s.Upload(ctx, ObjectName("video/cand-1", "answer.WEBM"), "video/webm", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, ".webm"))

	rc, err := s.Open(ctx, p)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "payload", string(b))

	require.NoError(t, s.Delete(ctx, p))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, p))
}

func TestLocalStoreWriteOnce(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Upload(ctx, "a/b.wav", "audio/wav", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, "a/b.wav", "audio/wav", strings.NewReader("2"))
	assert.Error(t, err)
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), "../outside.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.Open(context.Background(), filepath.Join(filepath.Dir(root), "other"))
	assert.Error(t, err)
}

func TestObjectNameIsUnique(t *testing.T) {
	a := ObjectName("audio", "x.wav")
	b := ObjectName("audio", "x.wav")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "audio/"))
	assert.True(t, strings.HasSuffix(a, ".wav"))
}
