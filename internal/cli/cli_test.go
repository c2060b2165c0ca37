package cli

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

func execute(fs afero.Fs, args ...string) (string, error) {
	root := newRootCmd(newApp(fs))

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func newTestServer(hits *int64) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		w.Header().Set("X-Test", "yes")
		w.Header().Set("X-Agent", r.UserAgent())
		io.WriteString(w, "hello")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s", r.Method, body)
	})
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/hello")
		w.WriteHeader(http.StatusFound)
		io.WriteString(w, "moved")
	})
	return httptest.NewServer(mux)
}

func TestParseHeaders(t *testing.T) {
	Convey("parseHeaders", t, func() {
		Convey("Should keep order and trim values", func() {
			h, err := parseHeaders([]string{"Accept: text/plain", "X-Multi:  a, b "})
			So(err, ShouldBeNil)
			So(h.Fields(), ShouldResemble, []protocol.Field{
				{Name: "Accept", Value: "text/plain"},
				{Name: "X-Multi", Value: "a, b"},
			})
		})

		Convey("Should reject lines without a name", func() {
			_, err := parseHeaders([]string{"no colon"})
			So(err, ShouldNotBeNil)

			_, err = parseHeaders([]string{": value"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRequestHelp(t *testing.T) {
	Convey("Every -X example in the request help should name a supported method", t, func() {
		cmd := newApp(afero.NewMemMapFs()).requestCmd()
		matches := regexp.MustCompile(`-X (\S+)`).FindAllStringSubmatch(cmd.Long, -1)
		So(matches, ShouldNotBeEmpty)
		for _, m := range matches {
			_, ok := protocol.ParseMethod(m[1])
			So(ok, ShouldBeTrue)
		}
	})
}

func TestExitCode(t *testing.T) {
	Convey("exitCode should follow the error kind", t, func() {
		So(exitCode(protocol.ErrURL), ShouldEqual, 3)
		So(exitCode(protocol.ErrNetwork), ShouldEqual, 7)
		So(exitCode(protocol.ErrParse), ShouldEqual, 8)
		So(exitCode(protocol.ErrResponseTimeout), ShouldEqual, 28)
		So(exitCode(protocol.ErrTLS), ShouldEqual, 35)
		So(exitCode(&protocol.StatusError{StatusCode: 500}), ShouldEqual, 22)
		So(exitCode(io.EOF), ShouldEqual, 1)
	})
}

func TestRequestCommands(t *testing.T) {
	Convey("Request commands", t, func() {
		var hits int64
		srv := newTestServer(&hits)
		defer srv.Close()
		fs := afero.NewMemMapFs()

		Convey("get should print the body", func() {
			out, err := execute(fs, "get", srv.URL+"/hello")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "hello")
		})

		Convey("-i should print the status line and headers first", func() {
			out, err := execute(fs, "get", "-i", srv.URL+"/hello")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "HTTP/1.1 ")
			So(out, ShouldContainSubstring, "200")
			So(out, ShouldContainSubstring, "X-Agent: wirehttp/"+version)
			So(out, ShouldEndWith, "\n\nhello")
		})

		Convey("head should print headers only", func() {
			out, err := execute(fs, "head", srv.URL+"/hello")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "X-Test: yes")
			So(out, ShouldNotContainSubstring, "hello\n")
		})

		Convey("post should read the body from a file", func() {
			So(afero.WriteFile(fs, "/body.json", []byte(`{"a":1}`), 0o644), ShouldBeNil)

			out, err := execute(fs, "post", srv.URL+"/echo", "-d", "@/body.json")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, `POST {"a":1}`)
		})

		Convey("request -X should use the given method", func() {
			out, err := execute(fs, "request", "-X", "patch", srv.URL+"/echo", "-d", "x")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "PATCH x")

			_, err = execute(fs, "request", "-X", "BREW", srv.URL+"/echo")
			So(err, ShouldNotBeNil)
		})

		Convey("-o should write the body to a file", func() {
			out, err := execute(fs, "get", srv.URL+"/hello", "-o", "/out.txt")
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)

			b, err := afero.ReadFile(fs, "/out.txt")
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "hello")
		})

		Convey("Redirects should be followed unless disabled", func() {
			out, err := execute(fs, "get", srv.URL+"/start")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "hello")

			out, err = execute(fs, "get", "--no-follow", srv.URL+"/start")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "moved")
		})

		Convey("Env vars should set flags", func() {
			os.Setenv("WIREHTTP_NO_FOLLOW", "true")
			defer os.Unsetenv("WIREHTTP_NO_FOLLOW")

			out, err := execute(fs, "get", srv.URL+"/start")
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "moved")
		})

		Convey("--fail should turn error statuses into errors", func() {
			_, err := execute(fs, "get", "--fail", srv.URL+"/missing")
			So(err, ShouldNotBeNil)
			So(exitCode(err), ShouldEqual, 22)

			_, err = execute(fs, "get", srv.URL+"/missing")
			So(err, ShouldBeNil)
		})

		Convey("Client errors should surface with their kind", func() {
			_, err := execute(fs, "get", "ftp://example.com/")
			So(protocol.KindOf(err), ShouldEqual, protocol.KindURL)

			_, err = execute(fs, "get", "--fingerprint", "netscape", srv.URL+"/hello")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestConfigCommands(t *testing.T) {
	Convey("Config driven commands", t, func() {
		var hits int64
		srv := newTestServer(&hits)
		defer srv.Close()
		fs := afero.NewMemMapFs()

		Convey("check should report unhealthy targets", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			So(err, ShouldBeNil)
			closed := ln.Addr().String()
			ln.Close()

			cfg := fmt.Sprintf(`
targets:
  - name: up
    url: %s/hello
  - name: down
    url: http://%s/
health:
  timeout: 1s
`, srv.URL, closed)
			So(afero.WriteFile(fs, "/wirehttp.yaml", []byte(cfg), 0o644), ShouldBeNil)

			out, err := execute(fs, "check", "-c", "/wirehttp.yaml")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "1 of 2 targets unhealthy")
			So(out, ShouldContainSubstring, "up")
			So(out, ShouldContainSubstring, "down")
		})

		Convey("run should stop after the request budget and log a summary", func() {
			cfg := fmt.Sprintf(`
targets:
  - name: local
    url: %s/hello
controller:
  rate: 100
  requests: 5
health:
  enabled: false
metrics:
  enabled: false
log:
  level: info
`, srv.URL)
			So(afero.WriteFile(fs, "/wirehttp.yaml", []byte(cfg), 0o644), ShouldBeNil)

			out, err := execute(fs, "run", "-c", "/wirehttp.yaml", "--log-file", "/run.log")
			So(err, ShouldBeNil)
			So(atomic.LoadInt64(&hits), ShouldEqual, 5)
			So(out, ShouldContainSubstring, "Run Summary")
			So(regexp.MustCompile(`requests:\s+5\b`).MatchString(out), ShouldBeTrue)
			So(regexp.MustCompile(`status_200:\s+5\b`).MatchString(out), ShouldBeTrue)

			out, err = execute(fs, "summary", "--log-file", "/run.log")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Last Run Summary")
			So(regexp.MustCompile(`requests:\s+5\b`).MatchString(out), ShouldBeTrue)
			So(out, ShouldNotContainSubstring, `"`)
		})

		Convey("--rate should override the file", func() {
			cfg := fmt.Sprintf("targets:\n  - name: local\n    url: %s/hello\n", srv.URL)
			So(afero.WriteFile(fs, "/wirehttp.yaml", []byte(cfg), 0o644), ShouldBeNil)

			_, err := execute(fs, "run", "-c", "/wirehttp.yaml", "--rate=-1")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "rate must be positive")
		})

		Convey("Missing config files should fail", func() {
			_, err := execute(fs, "check", "-c", "/nope.yaml")
			So(err, ShouldNotBeNil)
		})
	})
}
