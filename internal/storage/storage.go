package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the inbox sync
// and report export need.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// ResolveKey joins prefix and name unless name already carries the prefix.
func ResolveKey(prefix, name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	if strings.HasPrefix(name, prefix+"/") {
		return name
	}
	return fmt.Sprintf("%s/%s", prefix, name)
}

// RelativePath strips prefix from key, falling back to the base name.
func RelativePath(prefix, key string) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return key
	}
	rel := strings.TrimPrefix(key, prefix+"/")
	if rel == "" || rel == key {
		return path.Base(key)
	}
	return rel
}
