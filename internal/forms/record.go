package forms

import "time"

// SubmissionRecord is the stored copy of one accepted submission.
type SubmissionRecord struct {
	Form      string            `json:"form"`
	Kind      FormKind          `json:"kind"`
	Fields    map[string]string `json:"fields"`
	Timestamp time.Time         `json:"timestamp"`
}

// Value returns the submitted value of a field.
func (r SubmissionRecord) Value(name string) string {
	return r.Fields[name]
}
