package protocol

import (
	"strconv"
)

// redirectLocation returns the target of a redirect response that should be
// followed.
func redirectLocation(resp *Response, cfg RequestConfig) (string, bool) {
	if !cfg.FollowRedirects || !resp.IsRedirect() {
		return "", false
	}
	location, ok := resp.Header("Location")
	if !ok || location == "" {
		return "", false
	}
	return location, true
}

// followRedirect re-issues the request against location with the original
// method, headers and body. A 303 is not turned into a GET.
func (e *Engine) followRedirect(method Method, from ParsedURL, location string, headers Headers, body []byte, cfg RequestConfig, redirects int) (*Response, error) {
	next := redirects + 1
	if next > cfg.MaxRedirects {
		return nil, newError(KindNetwork, "too many redirects (max "+strconv.Itoa(cfg.MaxRedirects)+")", nil)
	}

	target := resolveLocation(from, location)
	e.log.WithField("location", target).WithField("hop", next).Debug("following redirect")

	return e.do(method, target, headers, body, cfg, next)
}
