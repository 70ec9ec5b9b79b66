package outcome

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FromResponse classifies an HTTP exchange. err is the transport error returned
// by http.Client.Do, if any. Response bodies are left untouched.
func FromResponse(resp *http.Response, err error, now time.Time) Outcome {
	if err != nil {
		return fromTransportError(err)
	}
	if resp == nil {
		return Transient(0, errors.New("nil response"))
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusNonAuthoritativeInfo:
		// Azure DevOps answers an invalid PAT with a 203 sign-in page.
		return Auth(status, errors.New("sign-in page returned"))
	case status >= 200 && status < 300:
		if isHTML(resp.Header.Get("Content-Type")) {
			return Auth(status, errors.New("sign-in page returned"))
		}
		return OK(status)
	case status >= 300 && status < 400:
		if loc := strings.ToLower(resp.Header.Get("Location")); strings.Contains(loc, "signin") || strings.Contains(loc, "login") {
			return Auth(status, errors.New("redirected to sign-in"))
		}
		return Missing(status, fmt.Errorf("unexpected redirect to %q", resp.Header.Get("Location")))
	case status == http.StatusUnauthorized:
		return Auth(status, nil)
	case status == http.StatusTooManyRequests:
		return Limited(status, RetryAfter(resp.Header, now), nil)
	case status == http.StatusForbidden:
		if throttled(resp.Header) {
			return Limited(status, RetryAfter(resp.Header, now), nil)
		}
		return Denied(status, nil)
	case status == http.StatusRequestTimeout || status >= 500:
		return Transient(status, nil)
	case status >= 400:
		return Missing(status, nil)
	default:
		return Transient(status, fmt.Errorf("unexpected status %d", status))
	}
}

func fromTransportError(err error) Outcome {
	if errors.Is(err, context.Canceled) {
		return Transient(0, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(0, fmt.Errorf("request timed out: %w", err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(0, fmt.Errorf("request timed out: %w", err))
	}
	return Transient(0, err)
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "text/html")
	}
	return mt == "text/html"
}

func throttled(h http.Header) bool {
	if h.Get("Retry-After") != "" {
		return true
	}
	return strings.TrimSpace(h.Get("X-RateLimit-Remaining")) == "0"
}

// RetryAfter parses the Retry-After header as delta seconds or an HTTP date.
// It returns 0 when the header is absent or unusable.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
