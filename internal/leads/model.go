package leads

import (
	"time"

	"github.com/wolfman30/barberia-elite/internal/forms"
)

// Lead is a form submission received over the network.
type Lead struct {
	ID          string            `json:"id"`
	Form        string            `json:"form"`
	Kind        forms.FormKind    `json:"kind"`
	Fields      map[string]string `json:"fields"`
	SubmittedAt time.Time         `json:"submitted_at"`
	ReceivedAt  time.Time         `json:"received_at"`
}

// Value returns the named field, empty when absent.
func (l *Lead) Value(name string) string {
	if l == nil {
		return ""
	}
	return l.Fields[name]
}

// CreateLeadRequest is the body posted to /api/submissions/{form}. It mirrors
// forms.SubmissionRecord.
type CreateLeadRequest struct {
	Form      string            `json:"form" validate:"required,max=64"`
	Kind      forms.FormKind    `json:"kind" validate:"omitempty,oneof=reservation contact newsletter"`
	Fields    map[string]string `json:"fields" validate:"required,min=1,max=32,dive,keys,required,max=64,endkeys,max=2000"`
	Timestamp time.Time         `json:"timestamp"`
}
