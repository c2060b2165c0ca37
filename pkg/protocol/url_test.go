package protocol

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseURL(t *testing.T) {
	Convey("ParseURL", t, func() {
		Convey("Should apply scheme defaults", func() {
			u, err := ParseURL("http://example.com")
			So(err, ShouldBeNil)
			So(u.Scheme, ShouldEqual, SchemeHTTP)
			So(u.Host, ShouldEqual, "example.com")
			So(u.Port, ShouldEqual, "80")
			So(u.Path, ShouldEqual, "/")

			u, err = ParseURL("https://example.com")
			So(err, ShouldBeNil)
			So(u.Port, ShouldEqual, "443")
			So(u.IsTLS(), ShouldBeTrue)
		})

		Convey("Should keep explicit port and verbatim path with query", func() {
			u, err := ParseURL("https://api.example.com:8443/v1/items?q=a%20b&x=1")
			So(err, ShouldBeNil)
			So(u.Host, ShouldEqual, "api.example.com")
			So(u.Port, ShouldEqual, "8443")
			So(u.Path, ShouldEqual, "/v1/items?q=a%20b&x=1")
			So(u.Address(), ShouldEqual, "api.example.com:8443")
		})

		Convey("Should accept an upper-case scheme and lower it", func() {
			u, err := ParseURL("HTTPS://example.com/")
			So(err, ShouldBeNil)
			So(u.Scheme, ShouldEqual, SchemeHTTPS)
		})

		Convey("Should reject malformed input", func() {
			for _, raw := range []string{
				"",
				"not-a-url",
				"ftp://example.com/",
				"http://",
				"http:/example.com",
				"http://example.com:abc/",
				"http://example.com:0/",
				"http://example.com:70000/",
			} {
				_, err := ParseURL(raw)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrURL), ShouldBeTrue)
			}
		})

		Convey("Should reproduce well-formed input", func() {
			for _, raw := range []string{
				"http://example.com/",
				"https://example.com:8443/a/b?c=d",
				"http://10.0.0.1:8080/health",
			} {
				u, err := ParseURL(raw)
				So(err, ShouldBeNil)
				So(u.String(), ShouldEqual, raw)

				again, err := ParseURL(u.String())
				So(err, ShouldBeNil)
				So(again, ShouldResemble, u)
			}
		})

		Convey("Should omit default ports from the Host header", func() {
			u, _ := ParseURL("http://example.com:80/")
			So(u.HostHeader(), ShouldEqual, "example.com")

			u, _ = ParseURL("https://example.com:80/")
			So(u.HostHeader(), ShouldEqual, "example.com:80")
		})
	})
}

func TestResolveLocation(t *testing.T) {
	Convey("resolveLocation", t, func() {
		base, _ := ParseURL("http://example.com:8080/a/b?x=1")

		So(resolveLocation(base, "https://other.test/c"), ShouldEqual, "https://other.test/c")
		So(resolveLocation(base, "/c/d"), ShouldEqual, "http://example.com:8080/c/d")
		So(resolveLocation(base, "c"), ShouldEqual, "http://example.com:8080/a/c")
		So(resolveLocation(base, "//cdn.test/e"), ShouldEqual, "http://cdn.test/e")
	})
}

func TestBuildURL(t *testing.T) {
	Convey("BuildURL", t, func() {
		Convey("Should join escaped segments and query pairs in order", func() {
			got := BuildURL("http://example.com/api/", []string{"users", "john doe"}, [][2]string{
				{"b", "2"},
				{"a", "x&y"},
			})
			So(got, ShouldEqual, "http://example.com/api/users/john%20doe?b=2&a=x%26y")
		})

		Convey("Should skip empty segments", func() {
			So(BuildURL("http://example.com", []string{"", "/v1/"}, nil), ShouldEqual, "http://example.com/v1")
		})
	})
}
