package forms

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wolfman30/barberia-elite/internal/validation"
	"gopkg.in/yaml.v3"
)

// FormKind identifies which of the site forms a definition describes.
type FormKind string

const (
	KindReservation FormKind = "reservation"
	KindContact     FormKind = "contact"
	KindNewsletter  FormKind = "newsletter"
)

var (
	// ErrNoDefinitions is returned when a definitions document lists no forms.
	ErrNoDefinitions = errors.New("forms: no form definitions")

	// ErrUnknownForm is returned when a form id has no definition.
	ErrUnknownForm = errors.New("forms: unknown form")
)

//go:embed definitions.yaml
var defaultDefinitions []byte

// FieldDefinition declares the constraints of one input.
type FieldDefinition struct {
	Name                   string `json:"name" yaml:"name"`
	validation.Constraints `yaml:",inline"`
}

// Messages are the diagnostic texts logged for a form.
type Messages struct {
	Success string `json:"success" yaml:"success"`
	Invalid string `json:"invalid" yaml:"invalid"`
}

// Definition is the declarative description of one form.
type Definition struct {
	ID          string        `json:"id" yaml:"id"`
	Kind        FormKind      `json:"kind" yaml:"kind"`
	RecordKey   string        `json:"record_key" yaml:"record_key"`
	SuccessID   string        `json:"success_id,omitempty" yaml:"success_id"`
	RevertDelay time.Duration `json:"revert_delay" yaml:"revert_delay"`
	// SuccessLabel replaces the submit button label while the success state
	// is shown.
	SuccessLabel string `json:"success_label,omitempty" yaml:"success_label"`
	// Counters maps a field name to the element showing its character count.
	Counters map[string]string `json:"counters,omitempty" yaml:"counters"`
	Fields   []FieldDefinition `json:"fields" yaml:"fields"`
	Messages Messages          `json:"messages" yaml:"messages"`
}

// Field returns the definition of the named field.
func (d Definition) Field(name string) (FieldDefinition, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// FieldNames lists the declared field names in order.
func (d Definition) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Definitions is an ordered set of form definitions.
type Definitions []Definition

// Lookup returns the definition with the given form id.
func (ds Definitions) Lookup(id string) (Definition, error) {
	for _, d := range ds {
		if d.ID == id {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %s", ErrUnknownForm, id)
}

type definitionsDocument struct {
	Forms []Definition `yaml:"forms"`
}

// LoadDefinitions parses a YAML definitions document.
func LoadDefinitions(r io.Reader) (Definitions, error) {
	var doc definitionsDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoDefinitions
		}
		return nil, fmt.Errorf("forms: failed to parse definitions: %w", err)
	}
	if len(doc.Forms) == 0 {
		return nil, ErrNoDefinitions
	}
	seen := make(map[string]struct{}, len(doc.Forms))
	for i, d := range doc.Forms {
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("forms: definition %d: %w", i, err)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("forms: duplicate form id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return Definitions(doc.Forms), nil
}

// DefaultDefinitions returns the reservation, contact and newsletter forms of
// the site.
func DefaultDefinitions() Definitions {
	defs, err := LoadDefinitions(bytes.NewReader(defaultDefinitions))
	if err != nil {
		panic(err)
	}
	return defs
}

func (d Definition) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(d.RecordKey) == "" {
		return fmt.Errorf("%s: record_key is required", d.ID)
	}
	switch d.Kind {
	case KindReservation, KindContact, KindNewsletter:
	default:
		return fmt.Errorf("%s: unknown kind %q", d.ID, d.Kind)
	}
	if d.RevertDelay <= 0 {
		return fmt.Errorf("%s: revert_delay must be positive", d.ID)
	}
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("%s: field without name", d.ID)
		}
		if f.MinLength < 0 {
			return fmt.Errorf("%s.%s: minlength cannot be negative", d.ID, f.Name)
		}
	}
	for field := range d.Counters {
		if _, ok := d.Field(field); !ok {
			return fmt.Errorf("%s: counter for undeclared field %q", d.ID, field)
		}
	}
	return nil
}
