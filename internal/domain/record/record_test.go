package record_test

import (
	"encoding/json"
	"testing"

	"github.com/venturelens/dealflow/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRawRecord_UnmarshalJSON(t *testing.T) {
	Convey("Given a well-formed record document", t, func() {
		doc := `{
			"id": "deal-1",
			"status": "SUCCESS",
			"original_filename": "pitch.pdf",
			"created_at": "2024-05-01T10:00:00Z",
			"timestamp": "2024-05-01T12:00:00Z",
			"processing_time_seconds": 4.5,
			"sent": true,
			"memo_1": {"id": "memo-1", "title": "Acme"},
			"memo_2": {"overall_score": 7}
		}`

		Convey("When decoding it", func() {
			var rec record.RawRecord
			err := json.Unmarshal([]byte(doc), &rec)

			Convey("Then every field should be populated", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldEqual, "deal-1")
				So(rec.Status, ShouldEqual, record.StatusSuccess)
				So(rec.OriginalFilename, ShouldEqual, "pitch.pdf")
				So(rec.CreatedAt, ShouldEqual, "2024-05-01T10:00:00Z")
				So(rec.ProcessingTimeSeconds, ShouldEqual, 4.5)
				So(rec.Sent, ShouldBeTrue)
				So(rec.Memo1.Present(), ShouldBeTrue)
				So(rec.Memo2.Present(), ShouldBeTrue)
				So(rec.Memo3.Present(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a document with mistyped fields", t, func() {
		doc := `{
			"id": "deal-2",
			"status": 42,
			"processing_time_seconds": "fast",
			"sent": "yes",
			"memo_1": "not an object",
			"memo_2": [1, 2, 3],
			"memo_3": {"overall_score": 8}
		}`

		Convey("When decoding it", func() {
			var rec record.RawRecord
			err := json.Unmarshal([]byte(doc), &rec)

			Convey("Then malformed fields should degrade to absent, never fail", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldEqual, "deal-2")
				So(rec.Status, ShouldEqual, record.StatusUnknown)
				So(rec.ProcessingTimeSeconds, ShouldEqual, 0)
				So(rec.Sent, ShouldBeFalse)
				So(rec.Memo1, ShouldBeNil)
				So(rec.Memo2, ShouldBeNil)
				So(rec.Memo3.Present(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a document that is not an object", t, func() {
		var rec record.RawRecord
		err := json.Unmarshal([]byte(`"just a string"`), &rec)

		Convey("Then the decode should fail at the document level", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMemo_Accessors(t *testing.T) {
	Convey("Given a memo payload", t, func() {
		m := record.Memo{
			"title":         "Acme Robotics",
			"empty":         "",
			"overall_score": 7.5,
			"int_score":     8,
			"key_risks":     []any{"churn", "runway", 3},
			"not_a_list":    "single",
		}

		Convey("Then Present should report non-empty objects", func() {
			So(m.Present(), ShouldBeTrue)
			So(record.Memo{}.Present(), ShouldBeFalse)
			So(record.Memo(nil).Present(), ShouldBeFalse)
		})

		Convey("Then Text should return the first non-empty string match", func() {
			s, ok := m.Text("missing", "title")
			So(ok, ShouldBeTrue)
			So(s, ShouldEqual, "Acme Robotics")

			_, ok = m.Text("empty")
			So(ok, ShouldBeFalse)

			_, ok = m.Text("overall_score")
			So(ok, ShouldBeFalse)
		})

		Convey("Then Number should accept float and int shapes", func() {
			f, ok := m.Number("overall_score")
			So(ok, ShouldBeTrue)
			So(f, ShouldEqual, 7.5)

			f, ok = m.Number("int_score")
			So(ok, ShouldBeTrue)
			So(f, ShouldEqual, 8)

			_, ok = m.Number("title")
			So(ok, ShouldBeFalse)
		})

		Convey("Then List should return nil for non-list values", func() {
			So(len(m.List("key_risks")), ShouldEqual, 3)
			So(m.List("not_a_list"), ShouldBeNil)
			So(m.List("missing"), ShouldBeNil)
		})

		Convey("Then Strings should skip non-string elements", func() {
			So(m.Strings("key_risks"), ShouldResemble, []string{"churn", "runway"})
		})

		Convey("Then a nil memo should be safe for every accessor", func() {
			var nilMemo record.Memo
			_, ok := nilMemo.Text("title")
			So(ok, ShouldBeFalse)
			_, ok = nilMemo.Number("overall_score")
			So(ok, ShouldBeFalse)
			So(nilMemo.List("key_risks"), ShouldBeNil)
		})
	})
}

func TestRawRecord_Memos(t *testing.T) {
	Convey("Given a record with only the second stage present", t, func() {
		rec := record.RawRecord{Memo2: record.Memo{"overall_score": 6.0}}

		Convey("Then Memos should list stages newest first with gaps kept", func() {
			memos := rec.Memos()
			So(len(memos), ShouldEqual, 3)
			So(memos[0], ShouldBeNil)
			So(memos[1].Present(), ShouldBeTrue)
			So(memos[2], ShouldBeNil)
		})

		Convey("Then Memo(n) should address stages by number", func() {
			So(rec.Memo(2).Present(), ShouldBeTrue)
			So(rec.Memo(1), ShouldBeNil)
			So(rec.Memo(4), ShouldBeNil)
		})
	})
}
