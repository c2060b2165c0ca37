package protocol

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildRequest(t *testing.T) {
	Convey("BuildRequest", t, func() {
		u, err := ParseURL("http://example.com/items?id=7")
		So(err, ShouldBeNil)

		Convey("Should write a GET without Content-Length", func() {
			got := string(BuildRequest(MethodGet, u, Headers{}, nil))
			So(got, ShouldEqual, "GET /items?id=7 HTTP/1.1\r\n"+
				"Host: example.com\r\n"+
				"Connection: close\r\n"+
				"\r\n")
		})

		Convey("Should announce the exact body length for POST", func() {
			body := []byte(`{"name":"x"}`)
			h := NewHeaders("Content-Type", "application/json")
			got := string(BuildRequest(MethodPost, u, h, body))
			So(got, ShouldEqual, "POST /items?id=7 HTTP/1.1\r\n"+
				"Host: example.com\r\n"+
				"Content-Type: application/json\r\n"+
				"Content-Length: 12\r\n"+
				"Connection: close\r\n"+
				"\r\n"+
				`{"name":"x"}`)
		})

		Convey("Should not announce an empty body", func() {
			got := string(BuildRequest(MethodPut, u, Headers{}, nil))
			So(got, ShouldNotContainSubstring, "Content-Length")
		})

		Convey("Should keep header order and casing", func() {
			h := NewHeaders("X-B", "2", "x-a", "1", "X-B", "3")
			got := string(BuildRequest(MethodGet, u, h, nil))
			So(got, ShouldContainSubstring, "X-B: 2\r\nx-a: 1\r\nX-B: 3\r\n")
		})

		Convey("Should include a non-default port in Host", func() {
			u, _ := ParseURL("https://example.com:8443/")
			got := string(BuildRequest(MethodGet, u, Headers{}, nil))
			So(got, ShouldContainSubstring, "Host: example.com:8443\r\n")
		})

		Convey("Should strip line breaks from header fields", func() {
			h := NewHeaders("X-Evil", "a\r\nInjected: yes")
			got := string(BuildRequest(MethodGet, u, h, nil))
			So(got, ShouldContainSubstring, "X-Evil: aInjected: yes\r\n")
			So(strings.Count(got, "\r\n"), ShouldEqual, 5)
		})
	})
}

func TestParseMethod(t *testing.T) {
	Convey("ParseMethod", t, func() {
		m, ok := ParseMethod("patch")
		So(ok, ShouldBeTrue)
		So(m, ShouldEqual, MethodPatch)
		So(m.String(), ShouldEqual, "PATCH")

		_, ok = ParseMethod("TRACE")
		So(ok, ShouldBeFalse)
	})
}

func TestDefaultRequestConfig(t *testing.T) {
	Convey("DefaultRequestConfig", t, func() {
		cfg := DefaultRequestConfig()
		So(cfg.TotalTimeout.Milliseconds(), ShouldEqual, 30000)
		So(cfg.ConnectTimeout.Milliseconds(), ShouldEqual, 10000)
		So(cfg.FollowRedirects, ShouldBeTrue)
		So(cfg.MaxRedirects, ShouldEqual, 5)
		So(cfg.MaxResponseSize, ShouldEqual, 0)
		So(cfg.VerifyTLS, ShouldBeTrue)
		So(cfg.CABundlePath, ShouldBeEmpty)
	})
}
