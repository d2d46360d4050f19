package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrTooLarge    = errors.New("blob exceeds size limit")
	ErrInvalidPath = errors.New("invalid blob path")
	ErrOutOfScope  = errors.New("blob path outside the allowed prefix")
)

// Store fetches previously uploaded files by their storage path.
type Store interface {
	Download(ctx context.Context, objectPath string, maxBytes int64) ([]byte, error)
}

// CleanPath validates a client-supplied storage path and returns it in
// canonical slash form without a leading slash.
func CleanPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.ContainsRune(trimmed, '\\') || strings.ContainsRune(trimmed, 0) {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", ErrInvalidPath
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// TablePrefix is the key prefix every upload imported into one lead table
// must live under.
func TablePrefix(orgID, tableID uuid.UUID) string {
	return "imports/" + orgID.String() + "/" + tableID.String() + "/"
}

// CleanScopedPath is CleanPath plus a check that the object sits below prefix.
func CleanScopedPath(raw, prefix string) (string, error) {
	cleaned, err := CleanPath(raw)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(cleaned, prefix) || len(cleaned) == len(prefix) {
		return "", ErrOutOfScope
	}
	return cleaned, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
