package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

var headerTerminator = []byte("\r\n\r\n")

// Response is a parsed HTTP response.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Headers    Headers
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError reports a 4xx status.
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError reports a 5xx status.
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// IsRedirect reports a status the redirect logic follows.
func (r *Response) IsRedirect() bool {
	switch r.StatusCode {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

// Header looks up a header ignoring case.
func (r *Response) Header(name string) (string, bool) {
	return r.Headers.Get(name)
}

// CheckStatus returns a *StatusError for 4xx and 5xx responses.
func (r *Response) CheckStatus() error {
	if r.IsClientError() || r.IsServerError() {
		return &StatusError{StatusCode: r.StatusCode, Body: r.Body}
	}
	return nil
}

// StatusError carries a response that completed with an error status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	const maxBody = 256
	body := e.Body
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	if len(body) == 0 {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, body)
}

// ParseResponse parses raw response bytes: a status line, header lines, an
// empty line and the body, which is returned verbatim.
func ParseResponse(raw []byte) (*Response, error) {
	idx := bytes.Index(raw, headerTerminator)
	if idx < 0 {
		return nil, newError(KindParse, "missing end of response headers", nil)
	}

	resp, err := parseHead(raw[:idx])
	if err != nil {
		return nil, err
	}
	resp.Body = raw[idx+len(headerTerminator):]
	return resp, nil
}

// parseHead parses the status line and headers. A repeated header keeps the
// last value; lines without a colon are dropped.
func parseHead(head []byte) (*Response, error) {
	lines := strings.Split(string(head), "\r\n")

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 {
		return nil, newError(KindParse, "malformed status line "+strconv.Quote(lines[0]), nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code <= 0 {
		return nil, newError(KindParse, "invalid status code "+strconv.Quote(parts[1]), err)
	}

	resp := &Response{
		Proto:      parts[0],
		StatusCode: code,
	}
	if len(parts) == 3 {
		resp.Reason = parts[2]
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		resp.Headers.Set(line[:i], strings.Trim(line[i+1:], " \t"))
	}

	return resp, nil
}

// bodyLength returns how many body bytes to expect after head, or -1 when the
// body runs until the peer closes.
func bodyLength(head []byte, method Method) int64 {
	if method == MethodHead {
		return 0
	}

	resp, err := parseHead(head)
	if err != nil {
		return -1
	}
	if resp.StatusCode < 200 || resp.StatusCode == 204 || resp.StatusCode == 304 {
		return 0
	}

	cl, ok := resp.Headers.Get("Content-Length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
