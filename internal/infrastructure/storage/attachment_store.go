package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
)

// RefPrefix starts every attachment reference
const RefPrefix = "ncr-"

// Config holds the local attachment store settings
type Config struct {
	BaseDir           string
	AllowedExtensions []string
	MaxSizeBytes      int64
}

// DefaultAllowedExtensions are accepted when none are configured
var DefaultAllowedExtensions = []string{"jpeg", "jpg", "png", "gif", "pdf", "doc", "docx"}

// DefaultMaxSizeBytes is 10 MiB
const DefaultMaxSizeBytes int64 = 10 << 20

// LocalAttachmentStore keeps uploaded files in a flat local directory
type LocalAttachmentStore struct {
	baseDir string
	allowed map[string]bool
	maxSize int64
	logger  *zap.Logger
}

// NewLocalAttachmentStore creates the base directory and returns the store
func NewLocalAttachmentStore(cfg Config, logger *zap.Logger) (*LocalAttachmentStore, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("attachment base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}

	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeBytes
	}

	return &LocalAttachmentStore{
		baseDir: cfg.BaseDir,
		allowed: allowed,
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

// Save stores content under a fresh ref that keeps the original extension
func (s *LocalAttachmentStore) Save(ctx context.Context, originalName string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !s.allowed[strings.TrimPrefix(ext, ".")] {
		return "", apperr.Validation(
			fmt.Sprintf("file type %q is not allowed", ext), "attachment")
	}
	if int64(len(content)) > s.maxSize {
		return "", apperr.Validation(
			fmt.Sprintf("file exceeds the %d byte limit", s.maxSize), "attachment")
	}

	ref := RefPrefix + uuid.NewString() + ext
	fullPath := filepath.Join(s.baseDir, ref)

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}

	s.logger.Debug("Attachment saved",
		zap.String("ref", ref),
		zap.String("original_name", originalName),
		zap.Int("size", len(content)))

	return ref, nil
}

// Open reads the attachment behind ref
func (s *LocalAttachmentStore) Open(ctx context.Context, ref string) ([]byte, error) {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("attachment", ref)
		}
		s.logger.Error("Failed to read attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return content, nil
}

// Delete removes ref. A missing file is not an error.
func (s *LocalAttachmentStore) Delete(ctx context.Context, ref string) error {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.logger.Error("Failed to delete attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	s.logger.Debug("Attachment deleted", zap.String("ref", ref))
	return nil
}

// resolve maps ref to a path inside baseDir, rejecting anything that escapes it
func (s *LocalAttachmentStore) resolve(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || !strings.HasPrefix(ref, RefPrefix) {
		return "", apperr.Validation(fmt.Sprintf("invalid attachment reference %q", ref), "attachment")
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, ref))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", apperr.Validation(fmt.Sprintf("attachment reference escapes base directory: %s", ref), "attachment")
	}
	return absPath, nil
}

var _ port.AttachmentStore = (*LocalAttachmentStore)(nil)
