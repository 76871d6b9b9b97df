package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"

	"brandkit/internal/domain"
)

// ObjectStore persists binary blobs and returns a publicly resolvable URL for them.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewObjectKey builds "<prefix>/<ulid>-<name>". The ULID keeps keys unique and time ordered.
func NewObjectKey(prefix, name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		name = "upload"
	}
	id := strings.ToLower(ulid.Make().String())
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return id + "-" + name
	}
	return prefix + "/" + id + "-" + name
}

// DetectImageType returns declared when it names an image type, otherwise sniffs data.
// Non-image content is rejected.
func DetectImageType(data []byte, declared string) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if strings.HasPrefix(declared, "image/") {
		return declared, nil
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return m.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, detected.String())
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
