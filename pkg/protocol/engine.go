package protocol

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Engine issues blocking HTTP/1.x requests. It holds no per-request state,
// but callers issuing requests from several goroutines usually give each its
// own Engine over a shared TransportContext.
type Engine struct {
	tc  *TransportContext
	log logrus.FieldLogger
}

var _ Client = (*Engine)(nil)

// New creates an Engine. A nil tc uses NewTransportContext.
func New(tc *TransportContext) *Engine {
	if tc == nil {
		tc = NewTransportContext()
	}
	log := tc.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{tc: tc, log: log}
}

// Request sends a request and returns the final response, following
// redirects when cfg allows it.
func (e *Engine) Request(method Method, rawURL string, headers Headers, body []byte, cfg RequestConfig) (*Response, error) {
	return e.do(method, rawURL, headers.Clone(), body, cfg, 0)
}

// Get sends a GET request.
func (e *Engine) Get(rawURL string, headers Headers, cfg RequestConfig) (*Response, error) {
	return e.Request(MethodGet, rawURL, headers, nil, cfg)
}

// Post sends a POST request.
func (e *Engine) Post(rawURL string, body []byte, headers Headers, cfg RequestConfig) (*Response, error) {
	return e.Request(MethodPost, rawURL, headers, body, cfg)
}

// Put sends a PUT request.
func (e *Engine) Put(rawURL string, body []byte, headers Headers, cfg RequestConfig) (*Response, error) {
	return e.Request(MethodPut, rawURL, headers, body, cfg)
}

// Delete sends a DELETE request.
func (e *Engine) Delete(rawURL string, headers Headers, cfg RequestConfig) (*Response, error) {
	return e.Request(MethodDelete, rawURL, headers, nil, cfg)
}

// Patch sends a PATCH request.
func (e *Engine) Patch(rawURL string, body []byte, headers Headers, cfg RequestConfig) (*Response, error) {
	return e.Request(MethodPatch, rawURL, headers, body, cfg)
}

// Head sends a HEAD request.
func (e *Engine) Head(rawURL string, headers Headers, cfg RequestConfig) (*Response, error) {
	return e.Request(MethodHead, rawURL, headers, nil, cfg)
}

// do runs one attempt; redirects counts the hops already taken.
func (e *Engine) do(method Method, rawURL string, headers Headers, body []byte, cfg RequestConfig, redirects int) (*Response, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	log := e.log.WithFields(logrus.Fields{
		"method": method.String(),
		"url":    u.String(),
	})
	start := time.Now()

	payload := BuildRequest(method, u, headers, body)
	raw, err := newSession(e.tc, u, cfg).roundTrip(method, payload)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return nil, err
	}

	resp, err := ParseResponse(raw)
	if err != nil {
		log.WithError(err).Debug("malformed response")
		return nil, err
	}
	if !decodeResponse(resp) {
		log.WithField("encoding", resp.Headers.Value("Content-Encoding")).Debug("content decoding failed, keeping raw body")
	}

	log.WithFields(logrus.Fields{
		"status":    resp.StatusCode,
		"bytes":     len(raw),
		"duration":  time.Since(start),
		"redirects": redirects,
	}).Debug("request completed")

	if location, ok := redirectLocation(resp, cfg); ok {
		return e.followRedirect(method, u, location, headers, body, cfg, redirects)
	}
	return resp, nil
}
