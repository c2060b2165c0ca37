package protocol

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Scheme is the URL scheme of a request target.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// DefaultPort returns the well-known port for the scheme.
func (s Scheme) DefaultPort() string {
	if s == SchemeHTTPS {
		return "443"
	}
	return "80"
}

var urlPattern = regexp.MustCompile(`^(?i:(https?))://([^:/]+)(?::(\d+))?(/.*)?$`)

// ParsedURL is an absolute http or https URL split into the parts needed on
// the wire. Port and Path are never empty.
type ParsedURL struct {
	Scheme Scheme
	Host   string
	Port   string
	// Path includes the query string, exactly as given.
	Path string
}

// ParseURL validates rawURL and splits it. The path and query are kept
// verbatim; nothing is percent-decoded.
func ParseURL(rawURL string) (ParsedURL, error) {
	if rawURL == "" {
		return ParsedURL{}, newError(KindURL, "empty url", nil)
	}

	m := urlPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ParsedURL{}, newError(KindURL, "invalid url "+strconv.Quote(rawURL), nil)
	}

	u := ParsedURL{
		Scheme: Scheme(strings.ToLower(m[1])),
		Host:   m[2],
		Port:   m[3],
		Path:   m[4],
	}

	if u.Port == "" {
		u.Port = u.Scheme.DefaultPort()
	} else if n, err := strconv.Atoi(u.Port); err != nil || n < 1 || n > 65535 {
		return ParsedURL{}, newError(KindURL, "invalid port "+strconv.Quote(u.Port), nil)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u, nil
}

// IsTLS reports whether the URL requires a TLS session.
func (u ParsedURL) IsTLS() bool {
	return u.Scheme == SchemeHTTPS
}

// Address returns host:port for dialing.
func (u ParsedURL) Address() string {
	return net.JoinHostPort(u.Host, u.Port)
}

// HostHeader returns the Host header value. The port is included only when
// it differs from the scheme default.
func (u ParsedURL) HostHeader() string {
	if u.Port == u.Scheme.DefaultPort() {
		return u.Host
	}
	return u.Host + ":" + u.Port
}

// String reassembles the URL. Default ports are omitted.
func (u ParsedURL) String() string {
	return string(u.Scheme) + "://" + u.HostHeader() + u.Path
}

// resolveLocation resolves a redirect target against the URL that produced it.
func resolveLocation(base ParsedURL, location string) string {
	if urlPattern.MatchString(location) {
		return location
	}

	b, err := url.Parse(base.String())
	if err != nil {
		return location
	}
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	return b.ResolveReference(ref).String()
}

// BuildURL appends escaped path segments and an encoded query to endpoint.
// Query pairs keep the given order.
func BuildURL(endpoint string, segments []string, query [][2]string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(endpoint, "/"))

	for _, seg := range segments {
		seg = strings.Trim(seg, "/")
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}

	for i, kv := range query {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}

	return b.String()
}
