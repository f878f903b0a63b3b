// Package questionnaire holds the guided questionnaire state machine shared by
// every flow: the step model, the selection accumulator, the navigation
// controller, the async task runner and the results explorer.
package questionnaire

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"CareerBot/model"
)

// FieldKind defines how a field is answered.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldSingle
	FieldMulti
)

type Field struct {
	Name    string
	Label   string
	Kind    FieldKind
	Options []string // Single and Multi; empty means options are supplied at runtime
	Limit   int      // Multi cardinality cap

	Required bool
	// RequiredWhen names a branch flag; the field is shown and required only while it is set.
	RequiredWhen string

	Min, Max    float64 // Number bounds, Max == 0 means unbounded
	Integer     bool    // Number must be whole
	Pattern     *regexp.Regexp
	PatternHint string
}

// Visible reports whether the field applies under the given branch flags.
func (f Field) Visible(flags map[string]bool) bool {
	return f.RequiredWhen == "" || flags[f.RequiredWhen]
}

func (f Field) required(flags map[string]bool) bool {
	if f.RequiredWhen != "" {
		return flags[f.RequiredWhen]
	}
	return f.Required
}

// validate returns an empty string when v is acceptable for f.
func (f Field) validate(v Value, flags map[string]bool) string {
	if !f.Visible(flags) {
		return ""
	}
	if v.IsZero() {
		if f.required(flags) {
			if f.Kind == FieldSingle || f.Kind == FieldMulti {
				return fmt.Sprintf("Please select %s.", f.Label)
			}
			return fmt.Sprintf("%s is required.", f.Label)
		}
		return ""
	}
	switch f.Kind {
	case FieldNumber:
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return fmt.Sprintf("%s must be a number.", f.Label)
		}
		if f.Integer && v.Number != math.Trunc(v.Number) {
			return fmt.Sprintf("%s must be a whole number.", f.Label)
		}
		if v.Number < f.Min || (f.Max != 0 && v.Number > f.Max) {
			if f.Max == 0 {
				return fmt.Sprintf("%s must be at least %s.", f.Label, formatNumber(f.Min))
			}
			return fmt.Sprintf("%s must be between %s and %s.", f.Label, formatNumber(f.Min), formatNumber(f.Max))
		}
	case FieldSingle:
		if len(f.Options) > 0 && !contains(f.Options, v.Text) {
			return fmt.Sprintf("%q is not a valid choice for %s.", v.Text, f.Label)
		}
	case FieldMulti:
		if f.Limit > 0 && len(v.Items) > f.Limit {
			return fmt.Sprintf("Select at most %d for %s.", f.Limit, f.Label)
		}
	case FieldText:
		if f.Pattern != nil && !f.Pattern.MatchString(v.Text) {
			if f.PatternHint != "" {
				return f.PatternHint
			}
			return fmt.Sprintf("%s is not valid.", f.Label)
		}
	}
	return ""
}

type Step struct {
	Title  string
	Fields []Field
	// Check runs after per-field validation and may add errors keyed by field name.
	Check func(a Answers) map[string]string
}

// Flow is the declarative description of one questionnaire.
type Flow struct {
	Name     string
	Kind     model.ResultKind
	Steps    []Step
	Branches map[string]func(Answers) bool
	// ChangePathStep is the step "Change Path" jumps to from the result view, -1 when unsupported.
	ChangePathStep int
}

// Field looks a field up across all steps.
func (f *Flow) Field(name string) (Field, bool) {
	for _, step := range f.Steps {
		for _, field := range step.Fields {
			if field.Name == name {
				return field, true
			}
		}
	}
	return Field{}, false
}

func (f *Flow) flags(a Answers) map[string]bool {
	flags := make(map[string]bool, len(f.Branches))
	for name, pred := range f.Branches {
		flags[name] = pred(a)
	}
	return flags
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
