package middleware

import "net/http"

// SecurityHeaders marks every response as non-framable and non-cacheable.
// Responses carry lead data (JSON or CSV/XLSX attachments), never HTML.
func SecurityHeaders(env string) func(http.Handler) http.Handler {
	isProd := env == "prod" || env == "production"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if isProd {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
