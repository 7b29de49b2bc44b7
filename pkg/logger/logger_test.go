package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialised on stderr", func() {
			So(Init(), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When initialised with a nil writer", func() {
			So(InitWithWriter(nil), ShouldNotBeNil)
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		ctx := context.Background()

		Convey("Then fields are rendered as key=value pairs", func() {
			Named("engine").Info(ctx, "group planned",
				String("group", "W1siTDEiLFtdXV0="),
				Int("events", 2),
				Bool("created", true),
				Decimal("amount", decimal.RequireFromString("100.5")),
				Date("date", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)),
				Strings("licenses", []string{"L1", "L2"}),
			)
			out := buf.String()
			So(out, ShouldContainSubstring, "component=engine")
			So(out, ShouldContainSubstring, "events=2")
			So(out, ShouldContainSubstring, "created=true")
			So(out, ShouldContainSubstring, "amount=100.50")
			So(out, ShouldContainSubstring, "date=2021-01-01")
			So(out, ShouldContainSubstring, "licenses=L1,L2")
			So(out, ShouldContainSubstring, "source=")
		})

		Convey("Then debug lines are dropped at info level", func() {
			Get().Debug(ctx, "hidden")
			So(buf.String(), ShouldBeEmpty)
		})

		Convey("Then errors are attached under the error key", func() {
			Get().Error(ctx, "failed", Error(errors.New("boom")))
			So(buf.String(), ShouldContainSubstring, "error=boom")
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)

		Convey("When the level is lowered to debug", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(context.Background(), "visible")
			So(buf.String(), ShouldContainSubstring, "visible")
		})

		Convey("When the level is unknown", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("warning"), ShouldBeNil)
			So(SetLevelString("error"), ShouldBeNil)
			Get().Warn(context.Background(), "suppressed")
			So(buf.String(), ShouldBeEmpty)
		})
	})
}
