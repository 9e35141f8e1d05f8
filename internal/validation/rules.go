package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Kind is the declared input type of a field.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindDate     Kind = "date"
	KindTel      Kind = "tel"
	KindSelect   Kind = "select"
	KindTextarea Kind = "textarea"
)

// Role names a field whose value carries extra meaning beyond its kind.
type Role string

const (
	RoleNone  Role = ""
	RolePhone Role = "phone"
	RoleDate  Role = "date"
)

// Rule names reported by ValidateFieldDetailed.
const (
	RuleRequired  = "required"
	RuleEmail     = "email"
	RulePhone     = "phone"
	RuleDate      = "date"
	RuleMinLength = "minlength"
)

// DateLayout is the wire format of date inputs.
const DateLayout = "2006-01-02"

// Constraints are the declarative requirements attached to one input.
type Constraints struct {
	Required  bool `json:"required,omitempty" yaml:"required"`
	Kind      Kind `json:"kind,omitempty" yaml:"kind"`
	Role      Role `json:"role,omitempty" yaml:"role"`
	MinLength int  `json:"minlength,omitempty" yaml:"minlength"`
}

var (
	// printable ASCII without space and '@'; the domain is dot-joined
	// non-empty labels
	emailPattern = regexp.MustCompile(`^[\x21-\x3F\x41-\x7E]+@[\x21-\x2D\x2F-\x3F\x41-\x7E]+(?:\.[\x21-\x2D\x2F-\x3F\x41-\x7E]+)+$`)
	// Peruvian mobile: 9 digits starting with 9, optional +51 prefix
	phonePattern  = regexp.MustCompile(`^(?:\+51)?9\d{8}$`)
	phoneGrouping = regexp.MustCompile(`^(\+51)?(\d{3})(\d{3})(\d{3})$`)
)

// ValidateEmail reports whether value looks like local@domain.tld.
func ValidateEmail(value string) bool {
	return emailPattern.MatchString(value)
}

// ValidatePhone reports whether value is a mobile number once whitespace is
// removed.
func ValidatePhone(value string) bool {
	return phonePattern.MatchString(stripSpaces(value))
}

// ValidateDate reports whether value names today or a later calendar day in loc.
func ValidateDate(value string, today time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	selected, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return false
	}
	return !selected.Before(startOfDay(today, loc))
}

// ValidateField evaluates every applicable rule and returns their conjunction.
func ValidateField(name, raw string, c Constraints, today time.Time, loc *time.Location) bool {
	return len(ValidateFieldDetailed(name, raw, c, today, loc)) == 0
}

// ValidateFieldDetailed returns the names of the rules raw fails. An empty
// result means the value is valid. Every rule is evaluated.
func ValidateFieldDetailed(_ string, raw string, c Constraints, today time.Time, loc *time.Location) []string {
	value := strings.TrimSpace(raw)
	var failed []string

	if c.Required && value == "" {
		failed = append(failed, RuleRequired)
	}
	if c.Kind == KindEmail && value != "" && !ValidateEmail(value) {
		failed = append(failed, RuleEmail)
	}
	if c.Role == RolePhone && value != "" && !ValidatePhone(value) {
		failed = append(failed, RulePhone)
	}
	if c.Role == RoleDate && value != "" && !ValidateDate(value, today, loc) {
		failed = append(failed, RuleDate)
	}
	if c.MinLength > 0 && value != "" && utf8.RuneCountInString(value) < c.MinLength {
		failed = append(failed, RuleMinLength)
	}
	return failed
}

// FormatPhone groups a nine digit number as "999 999 999", keeping a +51
// prefix. Whitespace is ignored. Anything else is returned unchanged.
func FormatPhone(value string) string {
	m := phoneGrouping.FindStringSubmatch(stripSpaces(value))
	if m == nil {
		return value
	}
	grouped := m[2] + " " + m[3] + " " + m[4]
	if m[1] != "" {
		return m[1] + " " + grouped
	}
	return grouped
}

// MinDate returns today's date in loc formatted for a date input's min
// attribute.
func MinDate(today time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return today.In(loc).Format(DateLayout)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
