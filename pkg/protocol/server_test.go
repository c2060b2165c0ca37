package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// rawServer is a loopback TCP server whose handler sees the raw request and
// writes whatever bytes it likes back.
type rawServer struct {
	ln       net.Listener
	mu       sync.Mutex
	requests [][]byte
	wg       sync.WaitGroup
}

type rawHandler func(conn net.Conn, req []byte)

func newRawServer(t *testing.T, handle rawHandler) *rawServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &rawServer{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()

				req, err := readRawRequest(conn)
				if err != nil {
					return
				}
				s.mu.Lock()
				s.requests = append(s.requests, req)
				s.mu.Unlock()
				handle(conn, req)
			}()
		}
	}()

	t.Cleanup(s.Close)
	return s
}

func (s *rawServer) URL(path string) string {
	return "http://" + s.ln.Addr().String() + path
}

func (s *rawServer) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.requests...)
}

func (s *rawServer) Close() {
	s.ln.Close()
}

// readRawRequest reads the request head and a Content-Length body.
func readRawRequest(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	var buf bytes.Buffer
	length := 0

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
		if line == "\r\n" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(name, "Content-Length") {
			length, _ = strconv.Atoi(strings.TrimSpace(value))
		}
	}

	if length > 0 {
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		buf.Write(body)
	}
	return buf.Bytes(), nil
}

// requestPath returns the request-target of a raw request.
func requestPath(req []byte) string {
	line, _, _ := strings.Cut(string(req), "\r\n")
	parts := strings.Split(line, " ")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func reply(body string, headers ...string) rawHandler {
	return func(conn net.Conn, _ []byte) {
		io.WriteString(conn, "HTTP/1.1 200 OK\r\n")
		for _, h := range headers {
			io.WriteString(conn, h+"\r\n")
		}
		io.WriteString(conn, "Content-Length: "+strconv.Itoa(len(body))+"\r\n\r\n"+body)
	}
}

// countingResolver records lookups and answers with fixed addresses.
type countingResolver struct {
	calls atomic.Int32
	addrs []string
	err   error

	mu    sync.Mutex
	hosts []string
}

func (r *countingResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.hosts = append(r.hosts, host)
	r.mu.Unlock()
	return r.addrs, r.err
}

func (r *countingResolver) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.hosts...)
}

// stallingDialer never connects.
type stallingDialer struct{}

func (stallingDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// refusingDialer fails immediately.
type refusingDialer struct{}

func (refusingDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return nil, errors.New("connection refused")
}

func testConfig() RequestConfig {
	cfg := DefaultRequestConfig()
	cfg.TotalTimeout = 2 * time.Second
	cfg.ConnectTimeout = time.Second
	return cfg
}
