// Package security holds the response header policy, the CORS policy and
// request screening for the JSON API.
package security

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginOpener   string
	CrossOriginResource string

	// CORSAllowOrigin is echoed in Access-Control-Allow-Origin. Empty
	// disables CORS handling.
	CORSAllowOrigin  string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	CORSMaxAge       int
}

// DefaultHeadersConfig returns the policy of a JSON API consumed by a
// browser planner served from another origin.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",

		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
		PermissionsPolicy:   "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginOpener:   "same-origin",
		CrossOriginResource: "cross-origin",

		CORSAllowOrigin:  "*",
		CORSAllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		CORSAllowHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:       600,
	}
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
}

// NewHeadersMiddleware creates a new security headers middleware
func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{
		config: config,
	}
}

// Middleware sets the headers on every response and answers CORS
// preflight requests with 204.
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)

		if h.config.CORSAllowOrigin != "" && r.Method == http.MethodOptions &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()

	setIf := func(key, value string) {
		if value != "" {
			headers.Set(key, value)
		}
	}
	setIf("X-Content-Type-Options", h.config.XContentTypeOptions)
	setIf("X-Frame-Options", h.config.XFrameOptions)
	setIf("Content-Security-Policy", h.config.CSP)
	setIf("Referrer-Policy", h.config.ReferrerPolicy)
	setIf("Permissions-Policy", h.config.PermissionsPolicy)
	setIf("Cross-Origin-Opener-Policy", h.config.CrossOriginOpener)
	setIf("Cross-Origin-Resource-Policy", h.config.CrossOriginResource)
	headers.Set("Cache-Control", "no-store")

	if r.TLS != nil && h.config.HSTSMaxAge > 0 {
		hstsValue := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
		if h.config.HSTSIncludeSubdomains {
			hstsValue += "; includeSubDomains"
		}
		if h.config.HSTSPreload {
			hstsValue += "; preload"
		}
		headers.Set("Strict-Transport-Security", hstsValue)
	}

	if h.config.CORSAllowOrigin != "" {
		headers.Set("Access-Control-Allow-Origin", h.config.CORSAllowOrigin)
		if h.config.CORSAllowOrigin != "*" {
			headers.Add("Vary", "Origin")
		}
		if len(h.config.CORSAllowMethods) > 0 {
			headers.Set("Access-Control-Allow-Methods", strings.Join(h.config.CORSAllowMethods, ", "))
		}
		if len(h.config.CORSAllowHeaders) > 0 {
			headers.Set("Access-Control-Allow-Headers", strings.Join(h.config.CORSAllowHeaders, ", "))
		}
		if h.config.CORSMaxAge > 0 {
			headers.Set("Access-Control-Max-Age", strconv.Itoa(h.config.CORSMaxAge))
		}
	}
}
