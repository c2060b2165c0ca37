package protocol

import (
	"errors"
	"fmt"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	Convey("Error", t, func() {
		Convey("Should match sentinels by kind", func() {
			err := newError(KindNetwork, "failed to connect", io.EOF)
			So(errors.Is(err, ErrNetwork), ShouldBeTrue)
			So(errors.Is(err, ErrTLS), ShouldBeFalse)
			So(errors.Is(err, io.EOF), ShouldBeTrue)
		})

		Convey("Should match timeouts by phase", func() {
			err := fmt.Errorf("wrapped: %w", timeoutError(PhaseResponse, "reading"))
			So(errors.Is(err, ErrTimeout), ShouldBeTrue)
			So(errors.Is(err, ErrResponseTimeout), ShouldBeTrue)
			So(errors.Is(err, ErrConnectTimeout), ShouldBeFalse)
			So(IsTimeout(err), ShouldBeTrue)
			So(PhaseOf(err), ShouldEqual, PhaseResponse)
			So(KindOf(err), ShouldEqual, KindTimeout)
		})

		Convey("Should render kind, message and cause", func() {
			So(newError(KindParse, "bad status", nil).Error(), ShouldEqual, "parse: bad status")
			So(newError(KindTLS, "handshake", io.EOF).Error(), ShouldEqual, "tls: handshake: EOF")
			So(timeoutError(PhaseConnection, "dial").Error(), ShouldEqual, "connection timeout: dial")
		})

		Convey("KindOf should report unknown for foreign errors", func() {
			So(KindOf(io.EOF), ShouldEqual, KindUnknown)
			So(KindOf(nil), ShouldEqual, KindUnknown)
		})
	})
}
