package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

type URLMode string

const (
	URLPublic    URLMode = "public"
	URLPresigned URLMode = "presigned"
	URLProxy     URLMode = "proxy"
)

const defaultPresignTTL = 15 * time.Minute

// URLPolicy decides how playback URLs are handed to clients.
type URLPolicy struct {
	Mode          URLMode
	Region        string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// ObjectURL returns the URL a client should use to fetch key.
func (c *Client) ObjectURL(key string) string {
	switch c.urls.Mode {
	case URLProxy:
		if uid, name, ok := SplitAudioKey(key); ok {
			return ProxyPath(uid, name)
		}
	case URLPresigned:
		if p, ok := c.backend.(Presigner); ok {
			ttl := c.urls.PresignTTL
			if ttl <= 0 {
				ttl = defaultPresignTTL
			}
			signed, err := p.PresignGet(c.bucket, key, ttl)
			if err == nil {
				return signed
			}
			slog.Warn("presign failed, falling back to public url", "key", key, "error", err)
		}
	}
	return c.publicURL(key)
}

func (c *Client) publicURL(key string) string {
	escaped := escapeKey(key)
	if c.urls.PublicBaseURL != "" {
		return strings.TrimRight(c.urls.PublicBaseURL, "/") + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.urls.Region, escaped)
}

// ProxyPath is the API route that streams an audio object through this service.
func ProxyPath(uid, name string) string {
	return "/api/v1/users/" + url.PathEscape(uid) + "/files/" + url.PathEscape(name) + "/stream"
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
