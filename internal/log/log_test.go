package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"github.com/wirehttp/wirehttp/internal/config"
)

func TestSetup(t *testing.T) {
	Convey("Setup", t, func() {
		logger := logrus.New()
		fs := afero.NewMemMapFs()

		Convey("Should fall back to info on an unknown level", func() {
			closer, err := Setup(logger, fs, config.Log{Level: "loud"})
			So(err, ShouldBeNil)
			So(closer.Close(), ShouldBeNil)
			So(logger.GetLevel(), ShouldEqual, logrus.InfoLevel)
			_, isText := logger.Formatter.(*logrus.TextFormatter)
			So(isText, ShouldBeTrue)
		})

		Convey("Should append JSON lines to the log file", func() {
			closer, err := Setup(logger, fs, config.Log{Level: "debug", Format: "json", File: "/var/log/wirehttp.log"})
			So(err, ShouldBeNil)
			So(logger.GetLevel(), ShouldEqual, logrus.DebugLevel)

			logger.WithField("target", "api").Debug("request completed")
			So(closer.Close(), ShouldBeNil)

			data, err := afero.ReadFile(fs, "/var/log/wirehttp.log")
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"target":"api"`)
			So(string(data), ShouldContainSubstring, `"msg":"request completed"`)
		})
	})
}

func TestComponent(t *testing.T) {
	Convey("Component should tag entries with the component name", t, func() {
		entry := Component("worker")
		So(entry.Data["component"], ShouldEqual, "worker")
	})
}
