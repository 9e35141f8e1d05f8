package leads

import (
	"context"
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/internal/validation"
)

// Intake turns posted submissions into stored leads. A submission must be
// structurally sound and pass the same field rules the browser applies.
type Intake struct {
	repo     Repository
	defs     forms.Definitions
	validate *validator.Validate
	policy   *bluemonday.Policy
	clock    clock.Clock
	loc      *time.Location
}

// NewIntake builds an intake for defs. A nil clock uses the wall clock and a
// nil location uses UTC.
func NewIntake(repo Repository, defs forms.Definitions, clk clock.Clock, loc *time.Location) *Intake {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Intake{
		repo:     repo,
		defs:     defs,
		validate: newValidator(),
		policy:   bluemonday.StrictPolicy(),
		clock:    clk,
		loc:      loc,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Accept validates req for formID and stores the resulting lead. Rule
// failures are reported as *ValidationError.
func (in *Intake) Accept(ctx context.Context, formID string, req *CreateLeadRequest) (*Lead, error) {
	if req.Form == "" {
		req.Form = formID
	}
	if req.Form != formID {
		return nil, ErrFormMismatch
	}
	def, err := in.defs.Lookup(formID)
	if err != nil {
		return nil, err
	}
	if req.Kind == "" {
		req.Kind = def.Kind
	}
	if err := in.checkStructure(req); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(def.Fields))
	failed := make(map[string][]string)
	today := in.clock.Now()
	for _, fd := range def.Fields {
		value := in.sanitize(req.Fields[fd.Name])
		if rules := validation.ValidateFieldDetailed(fd.Name, value, fd.Constraints, today, in.loc); len(rules) > 0 {
			failed[fd.Name] = rules
			continue
		}
		fields[fd.Name] = value
	}
	for name := range req.Fields {
		if _, ok := def.Field(name); !ok {
			failed[name] = append(failed[name], "unknown")
		}
	}
	if len(failed) > 0 {
		return nil, &ValidationError{Fields: failed}
	}

	submitted := req.Timestamp
	if submitted.IsZero() {
		submitted = today
	}
	lead := &Lead{
		ID:          uuid.New().String(),
		Form:        def.ID,
		Kind:        def.Kind,
		Fields:      fields,
		SubmittedAt: submitted.UTC(),
		ReceivedAt:  today.UTC(),
	}
	if err := in.repo.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("leads: store failed: %w", err)
	}
	return lead, nil
}

func (in *Intake) checkStructure(req *CreateLeadRequest) error {
	err := in.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("leads: validate request: %w", err)
	}
	failed := make(map[string][]string)
	for _, fe := range verrs {
		failed[fe.Field()] = append(failed[fe.Field()], fe.Tag())
	}
	return &ValidationError{Fields: failed}
}

// sanitize strips markup and keeps the visible text.
func (in *Intake) sanitize(raw string) string {
	return strings.TrimSpace(html.UnescapeString(in.policy.Sanitize(raw)))
}
