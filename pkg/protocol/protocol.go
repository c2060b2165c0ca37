// Package protocol implements an HTTP/1.x client that speaks the wire
// protocol directly over plain and TLS sockets.
package protocol

import (
	"strings"
	"time"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
	MethodHead   Method = "HEAD"
)

// String returns the method token as written on the request line.
func (m Method) String() string {
	return string(m)
}

// sendsContentLength reports whether a non-empty body is announced with a
// Content-Length header for this method.
func (m Method) sendsContentLength() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// ParseMethod converts a method name to a Method, ignoring case.
func ParseMethod(s string) (Method, bool) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead:
		return m, true
	}
	return "", false
}

// RequestConfig controls a single request, including every redirect hop.
type RequestConfig struct {
	// TotalTimeout bounds sending the request and receiving the response.
	TotalTimeout time.Duration
	// ConnectTimeout bounds name resolution, TCP connect and the TLS handshake.
	ConnectTimeout  time.Duration
	FollowRedirects bool
	MaxRedirects    int
	// MaxResponseSize caps the body bytes read; 0 means unlimited.
	MaxResponseSize int64
	VerifyTLS       bool
	CABundlePath    string
}

// DefaultRequestConfig returns the configuration used when callers have no
// particular requirements.
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		TotalTimeout:    30 * time.Second,
		ConnectTimeout:  10 * time.Second,
		FollowRedirects: true,
		MaxRedirects:    5,
		VerifyTLS:       true,
	}
}

// Client is the interface implemented by Engine. Consumers that only issue
// requests should depend on it rather than on Engine.
type Client interface {
	Request(method Method, rawURL string, headers Headers, body []byte, cfg RequestConfig) (*Response, error)
}
