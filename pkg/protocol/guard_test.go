package protocol

import (
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDeadlineGuard(t *testing.T) {
	Convey("DeadlineGuard", t, func() {
		Convey("Should run the abort after the deadline", func() {
			var aborted atomic.Bool
			g := ArmGuard(20*time.Millisecond, func() { aborted.Store(true) })

			time.Sleep(100 * time.Millisecond)
			So(aborted.Load(), ShouldBeTrue)
			So(g.Fired(), ShouldBeTrue)
			So(g.Disarm(), ShouldBeTrue)
		})

		Convey("Should not abort once disarmed", func() {
			var aborted atomic.Bool
			g := ArmGuard(50*time.Millisecond, func() { aborted.Store(true) })

			So(g.Disarm(), ShouldBeFalse)
			time.Sleep(100 * time.Millisecond)
			So(aborted.Load(), ShouldBeFalse)
			So(g.Disarm(), ShouldBeFalse)
		})

		Convey("Should never fire without a positive duration", func() {
			g := ArmGuard(0, func() { panic("unexpected abort") })
			time.Sleep(10 * time.Millisecond)
			So(g.Fired(), ShouldBeFalse)
			So(g.Disarm(), ShouldBeFalse)
		})
	})
}
