package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// HashURL creates a SHA256 hash of a URL string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}

// NormalizeResourceURL makes an embedded resource reference fetchable.
// Protocol-relative references get an explicit https scheme, root-relative
// references are resolved against base, and anything else is returned as-is.
func NormalizeResourceURL(base *url.URL, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref, nil
	case strings.HasPrefix(ref, "/"):
		if base == nil {
			return ref, nil
		}
		return ToAbsoluteURL(base, ref)
	default:
		return ref, nil
	}
}
