package middleware

import (
	"net/http"
	"strings"
)

// BodyLimitOverride raises or lowers the body limit for matching paths. A path
// matches when it starts with PathPrefix (with or without the /api mount) or
// ends with PathSuffix.
type BodyLimitOverride struct {
	PathPrefix string
	PathSuffix string
	MaxBytes   int64
}

func (o BodyLimitOverride) matches(path string) bool {
	if o.PathPrefix != "" {
		apiPath := strings.TrimPrefix(path, "/api")
		if strings.HasPrefix(path, o.PathPrefix) || strings.HasPrefix(apiPath, o.PathPrefix) {
			return true
		}
	}
	return o.PathSuffix != "" && strings.HasSuffix(path, o.PathSuffix)
}

func LimitBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return LimitBodyBytesWithOverrides(maxBytes, nil)
}

func LimitBodyBytesWithOverrides(defaultMax int64, overrides []BodyLimitOverride) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			maxBytes := defaultMax
			for _, override := range overrides {
				if override.MaxBytes <= 0 {
					continue
				}
				if override.matches(r.URL.Path) {
					maxBytes = override.MaxBytes
					break
				}
			}
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
