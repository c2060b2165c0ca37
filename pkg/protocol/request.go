package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

var headerSanitizer = strings.NewReplacer("\r", "", "\n", "")

// BuildRequest serializes an HTTP/1.1 request. The output is, in order: the
// request line, Host, the caller's headers as given, Content-Length for a
// non-empty body on POST, PUT, PATCH and DELETE, Connection: close, a blank
// line and the body.
func BuildRequest(method Method, u ParsedURL, headers Headers, body []byte) []byte {
	var b bytes.Buffer
	b.Grow(128 + 32*headers.Len() + len(body))

	b.WriteString(method.String())
	b.WriteByte(' ')
	b.WriteString(u.Path)
	b.WriteString(" HTTP/1.1\r\n")

	writeHeader(&b, "Host", u.HostHeader())
	headers.Each(func(name, value string) {
		writeHeader(&b, headerSanitizer.Replace(name), headerSanitizer.Replace(value))
	})

	if len(body) > 0 && method.sendsContentLength() {
		writeHeader(&b, "Content-Length", strconv.Itoa(len(body)))
	}
	writeHeader(&b, "Connection", "close")
	b.WriteString("\r\n")

	b.Write(body)
	return b.Bytes()
}

func writeHeader(b *bytes.Buffer, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}
