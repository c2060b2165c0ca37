package tui

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStatusStyle(t *testing.T) {
	Convey("StatusStyle should pick a style per status class", t, func() {
		So(StatusStyle(200).GetForeground(), ShouldEqual, SuccessStyle.GetForeground())
		So(StatusStyle(302).GetForeground(), ShouldEqual, InfoStyle.GetForeground())
		So(StatusStyle(404).GetForeground(), ShouldEqual, WarningStyle.GetForeground())
		So(StatusStyle(503).GetForeground(), ShouldEqual, ErrorStyle.GetForeground())
	})

	Convey("KeyValue should keep label and value", t, func() {
		row := KeyValue("rps", "12.5", 8)
		So(row, ShouldContainSubstring, "rps:")
		So(row, ShouldContainSubstring, "12.5")
	})
}
