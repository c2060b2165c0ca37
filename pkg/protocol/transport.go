package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"unicode/utf8"

	utls "github.com/refraction-networking/utls"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/net/idna"
)

// Resolver looks up the addresses of a host.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Dialer opens network connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// TransportContext holds the process-wide collaborators shared by every
// session. Build it once at startup and pass it to New.
type TransportContext struct {
	Resolver Resolver
	Dialer   Dialer
	// FS is used to read CA bundles.
	FS     afero.Fs
	Logger logrus.FieldLogger
	// Fingerprint selects a browser TLS ClientHello (chrome, firefox,
	// safari, ios). Empty uses crypto/tls.
	Fingerprint string
}

// NewTransportContext returns a context backed by the system resolver,
// dialer and filesystem.
func NewTransportContext() *TransportContext {
	return &TransportContext{
		Resolver: net.DefaultResolver,
		Dialer:   &net.Dialer{},
		FS:       afero.NewOsFs(),
		Logger:   logrus.StandardLogger(),
	}
}

var fingerprints = map[string]utls.ClientHelloID{
	"chrome":  utls.HelloChrome_Auto,
	"firefox": utls.HelloFirefox_Auto,
	"safari":  utls.HelloSafari_Auto,
	"ios":     utls.HelloIOS_Auto,
}

// ValidFingerprint reports whether name is a known TLS fingerprint. The
// empty name is valid and selects crypto/tls.
func ValidFingerprint(name string) bool {
	if name == "" {
		return true
	}
	_, ok := fingerprints[strings.ToLower(name)]
	return ok
}

var readBufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 32*1024)
		return &buf
	},
}

// maxHeaderBytes caps what is buffered while waiting for the end of the
// response headers.
const maxHeaderBytes = 64 << 10

// lookupName converts internationalized hosts to their ASCII form. ASCII
// hosts pass through untouched so resolvers see names like my_service as
// written.
func lookupName(host string) (string, error) {
	for i := 0; i < len(host); i++ {
		if host[i] >= utf8.RuneSelf {
			return idna.Lookup.ToASCII(host)
		}
	}
	return host, nil
}

// session owns the single socket used for one request attempt.
type session struct {
	tc  *TransportContext
	url ParsedURL
	cfg RequestConfig

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func newSession(tc *TransportContext, u ParsedURL, cfg RequestConfig) *session {
	return &session{tc: tc, url: u, cfg: cfg}
}

// roundTrip sends payload and returns the raw response bytes. The socket is
// closed before it returns.
func (s *session) roundTrip(method Method, payload []byte) ([]byte, error) {
	defer s.close()

	if err := s.connect(); err != nil {
		return nil, err
	}

	guard := ArmGuard(s.cfg.TotalTimeout, s.close)
	defer guard.Disarm()

	if _, err := s.conn.Write(payload); err != nil {
		if guard.Fired() {
			return nil, timeoutError(PhaseRequest, "sending request to "+s.url.Address())
		}
		return nil, newError(KindNetwork, "failed to send request", err)
	}

	return s.read(method, guard)
}

// connect resolves, dials and, for https, completes the TLS handshake, all
// within the connect timeout.
func (s *session) connect() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	guard := ArmGuard(s.cfg.ConnectTimeout, func() {
		cancel()
		s.close()
	})

	err := s.dial(ctx)
	if guard.Disarm() {
		return timeoutError(PhaseConnection, "connecting to "+s.url.Address())
	}
	return err
}

func (s *session) dial(ctx context.Context) error {
	addrs, err := s.resolve(ctx)
	if err != nil {
		return err
	}

	var conn net.Conn
	var lastErr error
	for _, addr := range addrs {
		conn, lastErr = s.tc.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, s.url.Port))
		if lastErr == nil {
			break
		}
	}
	if conn == nil {
		return newError(KindNetwork, "failed to connect to "+s.url.Address(), lastErr)
	}
	if !s.attach(conn) {
		return newError(KindNetwork, "connection aborted", net.ErrClosed)
	}

	if !s.url.IsTLS() {
		return nil
	}
	return s.handshake(conn)
}

func (s *session) resolve(ctx context.Context) ([]string, error) {
	if ip := net.ParseIP(s.url.Host); ip != nil {
		return []string{s.url.Host}, nil
	}

	host, err := lookupName(s.url.Host)
	if err != nil {
		return nil, newError(KindNetwork, "failed to resolve host "+s.url.Host, err)
	}

	addrs, err := s.tc.Resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, newError(KindNetwork, "failed to resolve host "+s.url.Host, err)
	}
	if len(addrs) == 0 {
		return nil, newError(KindNetwork, "no addresses for host "+s.url.Host, nil)
	}
	return addrs, nil
}

// handshake wraps raw in a TLS client with SNI set to the URL host.
func (s *session) handshake(raw net.Conn) error {
	cfg, err := s.tlsConfig()
	if err != nil {
		return err
	}

	if s.tc.Fingerprint != "" {
		return s.handshakeFingerprint(raw, cfg)
	}

	conn := tls.Client(raw, cfg)
	if !s.attach(conn) {
		return newError(KindNetwork, "connection aborted", net.ErrClosed)
	}
	if err := conn.Handshake(); err != nil {
		return newError(KindTLS, "tls handshake with "+s.url.Address()+" failed", err)
	}
	return nil
}

func (s *session) handshakeFingerprint(raw net.Conn, cfg *tls.Config) error {
	id, ok := fingerprints[strings.ToLower(s.tc.Fingerprint)]
	if !ok {
		return newError(KindTLS, "unknown tls fingerprint "+s.tc.Fingerprint, nil)
	}

	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return newError(KindTLS, "failed to load tls fingerprint", err)
	}
	// Only HTTP/1.1 can be spoken on this connection.
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	conn := utls.UClient(raw, &utls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		RootCAs:            cfg.RootCAs,
		MinVersion:         tls.VersionTLS12,
	}, utls.HelloCustom)
	if err := conn.ApplyPreset(&spec); err != nil {
		return newError(KindTLS, "failed to apply tls fingerprint", err)
	}
	if !s.attach(conn) {
		return newError(KindNetwork, "connection aborted", net.ErrClosed)
	}

	if err := conn.Handshake(); err != nil {
		return newError(KindTLS, "tls handshake with "+s.url.Address()+" failed", err)
	}
	if proto := conn.ConnectionState().NegotiatedProtocol; proto == "h2" {
		return newError(KindTLS, "server negotiated unsupported protocol "+proto, nil)
	}
	return nil
}

func (s *session) tlsConfig() (*tls.Config, error) {
	serverName, err := lookupName(s.url.Host)
	if err != nil {
		serverName = s.url.Host
	}

	cfg := &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: !s.cfg.VerifyTLS,
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{"http/1.1"},
	}

	if s.cfg.CABundlePath == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(s.tc.FS, s.cfg.CABundlePath)
	if err != nil {
		return nil, newError(KindTLS, "failed to read ca bundle", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(data) {
		return nil, newError(KindTLS, "no certificates found in ca bundle "+s.cfg.CABundlePath, nil)
	}
	cfg.RootCAs = pool

	return cfg, nil
}

// read collects the response. It stops at the end of the headers for bodiless
// responses, after Content-Length body bytes when the header is present, and
// otherwise when the peer closes the connection.
func (s *session) read(method Method, guard *DeadlineGuard) ([]byte, error) {
	bufPtr := readBufPool.Get().(*[]byte)
	defer readBufPool.Put(bufPtr)
	chunk := *bufPtr

	var (
		buf     []byte
		bodyAt  = -1
		want    int64 = -1
		scanned int
	)

	for {
		n, err := s.conn.Read(chunk)
		buf = append(buf, chunk[:n]...)

		if bodyAt < 0 {
			from := max(scanned-len(headerTerminator)+1, 0)
			if i := bytes.Index(buf[from:], headerTerminator); i >= 0 {
				end := from + i
				bodyAt = end + len(headerTerminator)
				want = bodyLength(buf[:end], method)
			}
			scanned = len(buf)
			if bodyAt < 0 && len(buf) > maxHeaderBytes {
				return nil, newError(KindParse, "response headers exceed maximum size", nil)
			}
		}

		if bodyAt >= 0 {
			got := int64(len(buf) - bodyAt)
			if want >= 0 && got > want {
				buf = buf[:bodyAt+int(want)]
				got = want
			}
			if s.cfg.MaxResponseSize > 0 && got > s.cfg.MaxResponseSize {
				return nil, newError(KindParse, "response exceeds maximum size", nil)
			}
			if want >= 0 && got == want {
				return buf, nil
			}
		}

		if err != nil {
			if guard.Fired() {
				return nil, timeoutError(PhaseResponse, "reading response from "+s.url.Address())
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return buf, nil
			}
			return nil, newError(KindNetwork, "failed to read response", err)
		}
	}
}

// attach records conn as the socket to close. It returns false, closing conn,
// when the session was already closed by a guard.
func (s *session) attach(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn != nil {
		s.conn.Close()
	}
}
