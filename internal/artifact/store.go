// AngelaMos | 2026
// store.go

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/reportriser/backend/internal/config"
)

var ErrInvalidKey = errors.New("invalid artifact key")

// Store persists rendered report artifacts under slash separated keys.
// Get returns core.ErrNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case config.StorageFilesystem:
		return NewFilesystemStore(cfg.Root)
	case config.StorageS3:
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PathStyle: cfg.PathStyle,
			Prefix:    cfg.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// cleanKey rejects absolute keys and any key that escapes its root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return cleaned, nil
}
