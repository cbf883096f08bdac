// backend/internal/adapters/out/gcs/common/object_url.go
package common

import (
	"net/url"
	"strings"
)

// PublicURL is the https form of gs://bucket/object.
func PublicURL(bucket, object string) string {
	return "https://storage.googleapis.com/" + strings.TrimSpace(bucket) + "/" + strings.TrimLeft(strings.TrimSpace(object), "/")
}

// ParseURL splits a storage.googleapis.com or storage.cloud.google.com URL
// into bucket and unescaped object path.
func ParseURL(raw string) (bucket, object string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", false
	}
	switch strings.ToLower(u.Host) {
	case "storage.googleapis.com", "storage.cloud.google.com":
	default:
		return "", "", false
	}
	bucket, rest, found := strings.Cut(strings.TrimLeft(u.EscapedPath(), "/"), "/")
	if !found || bucket == "" || rest == "" {
		return "", "", false
	}
	object, err = url.PathUnescape(rest)
	if err != nil {
		return "", "", false
	}
	return bucket, object, true
}
