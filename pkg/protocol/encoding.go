package protocol

import (
	"bytes"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding lists every content coding DecodeContent understands.
const AcceptEncoding = "gzip, deflate, br, zstd"

// DecodeContent reverses the content coding named by encoding. It reports
// false and returns body unchanged when the coding is unknown or the data
// does not decode.
func DecodeContent(encoding string, body []byte) ([]byte, bool) {
	if len(body) == 0 {
		return body, false
	}

	enc := strings.ToLower(encoding)

	var (
		out []byte
		err error
	)
	switch {
	case strings.Contains(enc, "gzip"):
		out, err = gunzip(body)
	case strings.Contains(enc, "deflate"):
		out, err = inflate(body)
	case strings.Contains(enc, "br"):
		out, err = io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	case strings.Contains(enc, "zstd"):
		out, err = unzstd(body)
	default:
		return body, false
	}

	if err != nil {
		return body, false
	}
	return out, true
}

// decodeResponse replaces resp.Body with its decoded form when the response
// names a content coding. It reports false when a non-empty body could not
// be decoded and was left as received.
func decodeResponse(resp *Response) bool {
	enc, ok := resp.Headers.Get("Content-Encoding")
	if !ok || len(resp.Body) == 0 {
		return true
	}
	out, ok := DecodeContent(enc, resp.Body)
	if ok {
		resp.Body = out
	}
	return ok
}

func gunzip(body []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// inflate accepts zlib-wrapped deflate and falls back to a raw deflate stream,
// which some servers send under the same name.
func inflate(body []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		out, err := io.ReadAll(r)
		r.Close()
		if err == nil {
			return out, nil
		}
	}

	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()
	return io.ReadAll(r)
}

func unzstd(body []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.DecodeAll(body, nil)
}
