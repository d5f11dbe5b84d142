package risk_test

import (
	"testing"

	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/internal/domain/risk"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScorer_Score(t *testing.T) {
	Convey("Given a scorer with default thresholds", t, func() {
		scorer := risk.NewScorer()

		Convey("When the record has no memos at all", func() {
			a := scorer.Score(record.RawRecord{})

			Convey("Then the neutral score classifies as low risk", func() {
				So(a.Score, ShouldEqual, 5)
				So(a.Flags, ShouldEqual, 0)
				So(a.Level, ShouldEqual, risk.Low)
			})
		})

		Convey("When the latest memo carries a low score", func() {
			a := scorer.Score(record.RawRecord{
				Memo1: record.Memo{"overall_score": 8.0},
				Memo2: record.Memo{"overall_score": 3.5},
			})

			Convey("Then the latest stage wins and the deal is high risk", func() {
				So(a.Score, ShouldEqual, 3.5)
				So(a.Level, ShouldEqual, risk.High)
			})
		})

		Convey("When the record scores 8 with no flags", func() {
			a := scorer.Score(record.RawRecord{
				Memo3: record.Memo{"overall_score": 8.0},
			})

			Convey("Then the deal is low risk", func() {
				So(a.Score, ShouldEqual, 8)
				So(a.Flags, ShouldEqual, 0)
				So(a.Level, ShouldEqual, risk.Low)
			})
		})

		Convey("When flags accumulate across stages", func() {
			a := scorer.Score(record.RawRecord{
				Memo1: record.Memo{"overall_score": 8.0, "initial_flags": []any{"a", "b"}},
				Memo2: record.Memo{"key_risks": []any{"c"}},
				Memo3: record.Memo{"key_risks": []any{"d"}},
			})

			Convey("Then four flags push the deal to high risk", func() {
				So(a.Flags, ShouldEqual, 4)
				So(a.Level, ShouldEqual, risk.High)
			})
		})

		Convey("When the flag count sits between the thresholds", func() {
			a := scorer.Score(record.RawRecord{
				Memo1: record.Memo{"overall_score": 9.0, "initial_flags": []any{"a", "b"}},
			})

			Convey("Then two flags mean medium risk", func() {
				So(a.Flags, ShouldEqual, 2)
				So(a.Level, ShouldEqual, risk.Medium)
			})
		})

		Convey("When the score is below the medium cutoff", func() {
			a := scorer.Score(record.RawRecord{
				Memo2: record.Memo{"overall_score": 6.0},
			})

			Convey("Then the deal is medium risk", func() {
				So(a.Level, ShouldEqual, risk.Medium)
			})
		})

		Convey("When the memos carry junk in the flag and score fields", func() {
			a := scorer.Score(record.RawRecord{
				Memo1: record.Memo{"overall_score": "high", "initial_flags": "many"},
				Memo2: record.Memo{"key_risks": map[string]any{"a": 1}},
			})

			Convey("Then junk counts as absent", func() {
				So(a.Score, ShouldEqual, 5)
				So(a.Flags, ShouldEqual, 0)
				So(a.Level, ShouldEqual, risk.Low)
			})
		})

		Convey("When a score sits exactly on a cutoff", func() {
			Convey("Then 4 is not below 4 and stays medium", func() {
				a := scorer.Score(record.RawRecord{Memo3: record.Memo{"overall_score": 4.0}})
				So(a.Level, ShouldEqual, risk.Medium)
			})

			Convey("Then 7 is not below 7 and stays low", func() {
				a := scorer.Score(record.RawRecord{Memo3: record.Memo{"overall_score": 7.0}})
				So(a.Level, ShouldEqual, risk.Low)
			})
		})
	})
}

func TestScorer_Options(t *testing.T) {
	Convey("Given a scorer with custom thresholds", t, func() {
		scorer := risk.NewScorer(
			risk.WithNeutralScore(6),
			risk.WithScoreThresholds(2, 5),
			risk.WithFlagThresholds(10, 5),
		)

		Convey("When scoring an empty record", func() {
			a := scorer.Score(record.RawRecord{})

			Convey("Then the custom neutral score applies", func() {
				So(a.Score, ShouldEqual, 6)
				So(a.Level, ShouldEqual, risk.Low)
			})
		})

		Convey("When the flag count exceeds only the default threshold", func() {
			a := scorer.Score(record.RawRecord{
				Memo1: record.Memo{"overall_score": 9.0, "initial_flags": []any{"a", "b", "c", "d"}},
			})

			Convey("Then the relaxed custom threshold keeps the deal low risk", func() {
				So(a.Flags, ShouldEqual, 4)
				So(a.Level, ShouldEqual, risk.Low)
			})
		})
	})

	Convey("Given inverted threshold options", t, func() {
		scorer := risk.NewScorer(
			risk.WithScoreThresholds(7, 4),
			risk.WithFlagThresholds(1, 3),
		)

		Convey("Then invalid orderings are ignored and defaults survive", func() {
			a := scorer.Score(record.RawRecord{Memo3: record.Memo{"overall_score": 8.0}})
			So(a.Level, ShouldEqual, risk.Low)
		})
	})
}
