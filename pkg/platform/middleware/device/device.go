// Package device summarises the caller's User-Agent for fraud records.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"votechain/pkg/requestcontext"
)

// Middleware parses the User-Agent and stores a short summary such as
// "Chrome 120.0 on Linux x86_64" in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if summary := Summarize(r.Header.Get("User-Agent")); summary != "" {
			r = r.WithContext(requestcontext.WithDevice(r.Context(), summary))
		}
		next.ServeHTTP(w, r)
	})
}

// Summarize returns "" for an empty header.
func Summarize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot " + name
	}

	name, version := ua.Browser()
	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteString(" ")
		b.WriteString(version)
	}
	if os := ua.OS(); os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	if ua.Mobile() {
		b.WriteString(" (mobile)")
	}
	return b.String()
}
