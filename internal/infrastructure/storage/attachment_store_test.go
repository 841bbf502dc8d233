package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
)

func newTestStore(t *testing.T, cfg Config) *LocalAttachmentStore {
	t.Helper()
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Join(t.TempDir(), "uploads")
	}
	s, err := NewLocalAttachmentStore(cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestLocalAttachmentStore_SaveOpenDelete(t *testing.T) {
	s := newTestStore(t, Config{})
	ctx := context.Background()

	ref, err := s.Save(ctx, "Weld Crack.JPG", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, RefPrefix))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))

	content, err := s.Open(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), content)

	require.NoError(t, s.Delete(ctx, ref))
	_, err = s.Open(ctx, ref)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.NoError(t, s.Delete(ctx, ref), "deleting a missing file is a no-op")
}

func TestLocalAttachmentStore_UniqueRefs(t *testing.T) {
	s := newTestStore(t, Config{})
	a, err := s.Save(context.Background(), "a.pdf", nil)
	require.NoError(t, err)
	b, err := s.Save(context.Background(), "a.pdf", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLocalAttachmentStore_Rejections(t *testing.T) {
	s := newTestStore(t, Config{MaxSizeBytes: 8})
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		content []byte
	}{
		{"disallowed extension", "payload.exe", []byte("x")},
		{"no extension", "README", []byte("x")},
		{"too large", "big.png", bytes.Repeat([]byte("x"), 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, tt.file, tt.content)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "error: %v", err)
		})
	}
}

func TestLocalAttachmentStore_PathEscape(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "uploads")
	s := newTestStore(t, Config{BaseDir: base})
	ctx := context.Background()

	secret := filepath.Join(dir, "ncr-secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0644))

	for _, ref := range []string{"../ncr-secret.txt", "ncr-../../etc/passwd", "/etc/passwd", "", "other.png"} {
		_, err := s.Open(ctx, ref)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "ref %q: %v", ref, err)
		assert.Error(t, s.Delete(ctx, ref))
	}

	_, err := os.Stat(secret)
	assert.NoError(t, err)
}

func TestLocalAttachmentStore_CustomExtensions(t *testing.T) {
	s := newTestStore(t, Config{AllowedExtensions: []string{".TXT"}})
	_, err := s.Save(context.Background(), "notes.txt", []byte("ok"))
	assert.NoError(t, err)
	_, err = s.Save(context.Background(), "photo.png", []byte("no"))
	assert.Error(t, err)
}
