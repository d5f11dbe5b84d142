package stage_test

import (
	"testing"

	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/internal/domain/stage"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDerive(t *testing.T) {
	Convey("Given records at different pipeline depths", t, func() {
		memo := record.Memo{"id": "m-1"}

		Convey("Then an empty record should derive to intake", func() {
			So(stage.Derive(record.RawRecord{}), ShouldEqual, stage.Intake)
		})

		Convey("Then the highest present memo should win", func() {
			So(stage.Derive(record.RawRecord{Memo1: memo}), ShouldEqual, stage.Memo1)
			So(stage.Derive(record.RawRecord{Memo1: memo, Memo2: memo}), ShouldEqual, stage.Memo2)
			So(stage.Derive(record.RawRecord{Memo1: memo, Memo2: memo, Memo3: memo}), ShouldEqual, stage.Memo3)
		})

		Convey("Then gaps should report the highest stage found", func() {
			So(stage.Derive(record.RawRecord{Memo3: memo}), ShouldEqual, stage.Memo3)
			So(stage.Derive(record.RawRecord{Memo2: memo}), ShouldEqual, stage.Memo2)
		})

		Convey("Then an empty memo object should not count as present", func() {
			So(stage.Derive(record.RawRecord{Memo1: record.Memo{}}), ShouldEqual, stage.Intake)
		})

		Convey("Then the sent flag should not affect derivation", func() {
			So(stage.Derive(record.RawRecord{Sent: true, Memo1: memo}), ShouldEqual, stage.Memo1)
		})
	})
}
