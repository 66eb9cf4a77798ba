package middleware

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const bodyLimitExceededKey = "body_limit_exceeded"

// BodyLimit returns middleware that caps the request body at limit.
//
// Limits are specified as human-readable strings: "1M" for 1 megabyte,
// "11M" for 11 megabytes, etc. Supported suffixes are K (kilobytes),
// M (megabytes), and G (gigabytes). A bare number is treated as bytes.
//
// A declared Content-Length above the limit is rejected before the handler
// runs. Otherwise the body is wrapped so that reading past the limit fails
// with tooLarge and marks the context; handlers that parse multipart forms
// should consult BodyLimitExceeded because the multipart reader does not
// always surface the original error.
func BodyLimit(limit string, tooLarge error) echo.MiddlewareFunc {
	limitBytes := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > limitBytes {
				c.Set(bodyLimitExceededKey, true)
				return tooLarge
			}

			req.Body = &limitedReadCloser{
				ReadCloser: req.Body,
				remaining:  limitBytes,
				tooLarge:   tooLarge,
				c:          c,
			}

			return next(c)
		}
	}
}

// BodyLimitExceeded reports whether the request body hit the BodyLimit cap.
func BodyLimitExceeded(c echo.Context) bool {
	exceeded, _ := c.Get(bodyLimitExceededKey).(bool)
	return exceeded
}

// limitedReadCloser wraps an io.ReadCloser and returns an error once the
// read limit is exceeded.
type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
	tooLarge  error
	c         echo.Context
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, r.tooLarge
	}

	// Only read up to the remaining allowed bytes + 1 (to detect overflow)
	toRead := int64(len(p))
	if toRead > r.remaining+1 {
		toRead = r.remaining + 1
	}

	n, err = r.ReadCloser.Read(p[:toRead])
	r.remaining -= int64(n)

	if r.remaining < 0 {
		r.exceeded = true
		r.c.Set(bodyLimitExceededKey, true)
		return 0, r.tooLarge
	}

	return n, err
}

// parseLimit parses a human-readable size string (e.g. "1M", "512K", "10G")
// into the number of bytes. If the string cannot be parsed, it defaults to
// 1 MB.
func parseLimit(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 1 << 20
	}

	var multiplier int64 = 1
	s = strings.TrimSuffix(s, "B")
	switch {
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 1 << 20
	}

	return n * multiplier
}
