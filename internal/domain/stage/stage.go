// Package stage derives the pipeline stage of a deal from payload presence.
package stage

import "github.com/venturelens/dealflow/internal/domain/record"

// Stage describes how far document processing has progressed for a deal.
type Stage string

// Pipeline stages. Sent is an external signal applied by callers that track
// the override flag on the record; Derive never produces it.
const (
	Intake Stage = "intake"
	Memo1  Stage = "memo_1"
	Memo2  Stage = "memo_2"
	Memo3  Stage = "memo_3"
	Sent   Stage = "sent"
)

// Derive returns the highest-numbered memo stage present on the record.
// Workers may write stage payloads out of order or only a subset, so gaps
// (memo_3 present without memo_1) are reported as the highest stage found,
// not rejected. An empty record derives to Intake.
func Derive(rec record.RawRecord) Stage {
	switch {
	case rec.Memo3.Present():
		return Memo3
	case rec.Memo2.Present():
		return Memo2
	case rec.Memo1.Present():
		return Memo1
	}
	return Intake
}
