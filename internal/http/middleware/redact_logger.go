// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements TokenRedactingLogger, a structured HTTP logger that
// scrubs the webhook shared secret and other sensitive values from request
// metadata before emitting logs.
//
// Design goals:
//   - Default-safe: never logs request or response bodies
//   - Masks any query parameter named in opts.MaskParams (e.g. "token")
//   - Masks sensitive headers (Authorization, Cookie, Set-Cookie, plus custom)
//   - Produces structured JSON logs via zerolog
//
// Security note: this middleware reduces but does not eliminate the risk of
// secrets leaking to logs. Chat clients should send the token in the request
// body or a header rather than the query string whenever possible.
package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures scrub behavior for TokenRedactingLogger.
//
// MaskParams lists query/form parameter names whose values are replaced with
// "[REDACTED]". MaskHeaders lists extra HTTP header names to fully mask;
// matching is case-insensitive and merged with the built-in sensitive headers
// ("Authorization", "Cookie", "Set-Cookie").
type RedactOptions struct {
	MaskParams  []string
	MaskHeaders []string
}

// TokenRedactingLogger returns a Gin middleware that logs HTTP requests and
// responses with sensitive values scrubbed.
//
// Behavior:
//   - Logs method, path, query string, status, response size, latency,
//     and request headers (with scrubbing applied).
//   - Replaces the values of masked query parameters with "[REDACTED]"
//     while preserving parameter names and ordering-insensitive shape.
//   - Fully masks built-in sensitive headers and any additional headers
//     provided in opts.MaskHeaders.
//   - Logs at INFO level by default, WARN for 4xx, ERROR for 5xx.
func TokenRedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskParams := make(map[string]struct{}, len(opts.MaskParams))
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			maskParams[p] = struct{}{}
		}
	}

	// Build header mask set (case-insensitive).
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	redactQuery := func(rawQuery string) string {
		if rawQuery == "" || len(maskParams) == 0 {
			return rawQuery
		}
		vals, err := url.ParseQuery(rawQuery)
		if err != nil {
			// Unparseable query strings are dropped rather than logged raw.
			return "[REDACTED:unparseable]"
		}
		for k := range vals {
			if _, masked := maskParams[strings.ToLower(k)]; masked {
				vals[k] = []string{"[REDACTED]"}
			}
		}
		return vals.Encode()
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redactQuery(c.Request.URL.RawQuery)

		// Scrub headers.
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = strings.Join(vv, ", ")
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := c.Writer.Size()

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		// Severity based on status.
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", size).
			Dur("latency", latency).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
