package questionnaire

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is one answer: free text, a number, or an ordered set of selections.
type Value struct {
	Text    string
	Number  float64
	Items   []string
	present bool
}

func TextValue(s string) Value {
	s = strings.TrimSpace(s)
	return Value{Text: s, present: s != ""}
}

func NumberValue(n float64) Value {
	return Value{Number: n, present: true}
}

func ItemsValue(items ...string) Value {
	cp := append([]string(nil), items...)
	return Value{Items: cp, present: len(cp) > 0}
}

// IsZero reports whether the value is unanswered.
func (v Value) IsZero() bool {
	return !v.present
}

// String renders the value for prompts and summaries.
func (v Value) String() string {
	switch {
	case !v.present:
		return ""
	case len(v.Items) > 0:
		return strings.Join(v.Items, ", ")
	case v.Text != "":
		return v.Text
	default:
		return formatNumber(v.Number)
	}
}

// Answers maps field names to values.
type Answers map[string]Value

func (a Answers) Text(name string) string    { return a[name].Text }
func (a Answers) Number(name string) float64 { return a[name].Number }
func (a Answers) Items(name string) []string { return append([]string(nil), a[name].Items...) }
func (a Answers) Has(name string) bool       { return !a[name].IsZero() }

func (a Answers) clone() Answers {
	cp := make(Answers, len(a))
	for k, v := range a {
		v.Items = append([]string(nil), v.Items...)
		cp[k] = v
	}
	return cp
}

// Set stores or replaces the value of field.
func (s *Session) Set(field string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(field, v)
}

func (s *Session) setLocked(field string, v Value) {
	delete(s.errors, field)
	f, ok := s.flow.Field(field)
	if !ok {
		s.errors[field] = fmt.Sprintf("Unknown field %q.", field)
		return
	}
	// Over-limit sets are refused whole; the stored selection stays as it was.
	if f.Kind == FieldMulti && f.Limit > 0 && len(v.Items) > f.Limit {
		s.errors[field] = fmt.Sprintf("Select at most %d for %s.", f.Limit, f.Label)
		return
	}
	if v.IsZero() {
		delete(s.answers, field)
	} else {
		s.answers[field] = v
	}
	s.recompute()
}

// SetInput parses raw user text according to the field kind and stores it.
// Unparseable input is recorded in the field error instead of being stored.
func (s *Session) SetInput(field, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flow.Field(field)
	if !ok {
		s.errors[field] = fmt.Sprintf("Unknown field %q.", field)
		return
	}
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case FieldNumber:
		if raw == "" {
			s.setLocked(field, Value{})
			return
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			s.errors[field] = fmt.Sprintf("%s must be a number.", f.Label)
			return
		}
		s.setLocked(field, NumberValue(n))
	case FieldSingle:
		for _, opt := range f.Options {
			if strings.EqualFold(opt, raw) {
				s.setLocked(field, TextValue(opt))
				return
			}
		}
		if len(f.Options) == 0 {
			s.setLocked(field, TextValue(raw))
			return
		}
		s.errors[field] = fmt.Sprintf("%q is not a valid choice for %s.", raw, f.Label)
	case FieldMulti:
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" && !contains(items, part) {
				items = append(items, part)
			}
		}
		if f.Limit > 0 && len(items) > f.Limit {
			items = items[:f.Limit]
		}
		s.setLocked(field, ItemsValue(items...))
	default:
		s.setLocked(field, TextValue(raw))
	}
}

// Toggle adds item when absent and under limit, removes it when present, and
// silently ignores the add once the limit is reached. A limit of 0 uses the
// field's own cap.
func (s *Session) Toggle(field, item string, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.errors, field)
	f, ok := s.flow.Field(field)
	if !ok {
		s.errors[field] = fmt.Sprintf("Unknown field %q.", field)
		return
	}
	if limit <= 0 {
		limit = f.Limit
	}
	items := s.answers[field].Items
	for i, existing := range items {
		if existing == item {
			next := append(append([]string(nil), items[:i]...), items[i+1:]...)
			s.setLocked(field, ItemsValue(next...))
			return
		}
	}
	if limit > 0 && len(items) >= limit {
		return
	}
	s.setLocked(field, ItemsValue(append(append([]string(nil), items...), item)...))
}

// ClearError drops the validation message of field.
func (s *Session) ClearError(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, field)
}
