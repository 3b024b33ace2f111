package middleware

import (
	"net/http"

	"github.com/mssola/useragent"

	"gatepass/pkg/requestcontext"
)

// Device parses the User-Agent once per request and exposes browser/OS
// metadata through context. Audit events attach it; domain logic never
// branches on it.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		ua := useragent.New(raw)
		browser, _ := ua.Browser()
		ctx := requestcontext.WithDeviceInfo(r.Context(), requestcontext.Device{
			Browser: browser,
			OS:      ua.OS(),
			Mobile:  ua.Mobile(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
