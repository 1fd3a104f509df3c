package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCoverImageKey(t *testing.T) {
	a := CoverImageKey("abc123", "image/PNG")
	b := CoverImageKey("abc123", "image/png")

	if !strings.HasPrefix(a, "classes/abc123/") || !strings.HasSuffix(a, ".png") {
		t.Errorf("unexpected key %q", a)
	}
	if a == b {
		t.Error("keys must be unique per upload")
	}
	if k := CoverImageKey("abc123", "bogus"); strings.Contains(k, ".") {
		t.Errorf("content type without subtype should not add an extension: %q", k)
	}
}

func TestDisabledStorage(t *testing.T) {
	s := NewDisabledStorage()
	ctx := context.Background()

	if _, err := s.GeneratePresignedUploadURL(ctx, "k", "image/png", 0); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("upload url error = %v", err)
	}
	if _, err := s.ObjectExists(ctx, "k"); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("exists error = %v", err)
	}
	if err := s.DeleteObject(ctx, "k"); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("delete error = %v", err)
	}
}
