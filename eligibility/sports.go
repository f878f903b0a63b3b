// Package eligibility decides which age category and competitions a player
// can enter for a sport.
package eligibility

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type Status string

const (
	TooYoung Status = "ineligible-young"
	TooOld   Status = "ineligible-old"
	Eligible Status = "eligible"
)

// OpenCategory is the category used when no bracket bound covers the age.
const OpenCategory = "Open"

type Verdict struct {
	Sport       string
	Age         int
	Status      Status
	Category    string
	Competition string
	MinAge      int
	MaxAge      int
}

type Bracket struct {
	Label       string
	Competition string
}

type SportRule struct {
	Min, Max int
	Brackets []Bracket
}

// genericRule covers any sport missing from the table.
var genericRule = SportRule{Min: 5, Max: 50}

var rules = map[string]SportRule{
	"cricket": {Min: 8, Max: 50, Brackets: []Bracket{
		{"Under-14", "School Nationals, Vijay Merchant Trophy"},
		{"Under-16", "Vijay Merchant Trophy"},
		{"Under-19", "Cooch Behar Trophy, Vinoo Mankad Trophy"},
		{"Under-23", "CK Nayudu Trophy"},
		{"Open", "Ranji Trophy, Vijay Hazare Trophy, Syed Mushtaq Ali Trophy"},
	}},
	"football": {Min: 6, Max: 40, Brackets: []Bracket{
		{"Under-14", "Subroto Cup Sub-Junior"},
		{"Under-17", "Subroto Cup Junior, Khelo India Youth Games"},
		{"Under-21", "Khelo India University Games"},
		{"Open", "Santosh Trophy, I-League"},
	}},
	"badminton": {Min: 6, Max: 45, Brackets: []Bracket{
		{"Under-13", "Sub-Junior Nationals"},
		{"Under-15", "Sub-Junior Nationals"},
		{"Under-17", "Junior Nationals"},
		{"Under-19", "Junior Nationals, Khelo India Youth Games"},
		{"Open", "Senior Nationals"},
	}},
	"athletics": {Min: 8, Max: 45, Brackets: []Bracket{
		{"Under-14", "National Inter-District Junior Athletics Meet"},
		{"Under-16", "National Youth Athletics Championships"},
		{"Under-18", "National Youth Athletics Championships"},
		{"Under-20", "National Junior Athletics Championships"},
		{"Open", "National Open Athletics Championships"},
	}},
	"swimming": {Min: 5, Max: 40, Brackets: []Bracket{
		{"Under-11", "Sub-Junior National Aquatic Championships (Group III)"},
		{"Under-14", "Sub-Junior National Aquatic Championships (Group II)"},
		{"Under-17", "Junior National Aquatic Championships (Group I)"},
		{"Open", "Senior National Aquatic Championships"},
	}},
	"hockey": {Min: 8, Max: 40, Brackets: []Bracket{
		{"Under-16", "Sub-Junior National Hockey Championship"},
		{"Under-19", "Junior National Hockey Championship"},
		{"Open", "Senior National Hockey Championship"},
	}},
	"kabaddi": {Min: 10, Max: 40, Brackets: []Bracket{
		{"Under-17", "School Games Federation Nationals"},
		{"Under-20", "Junior National Kabaddi Championship"},
		{"Open", "Senior National Kabaddi Championship, Pro Kabaddi League"},
	}},
	"tennis": {Min: 6, Max: 45, Brackets: []Bracket{
		{"Under-12", "AITA Championship Series U-12"},
		{"Under-14", "AITA Championship Series U-14"},
		{"Under-16", "AITA Championship Series U-16"},
		{"Under-18", "AITA Junior Nationals"},
		{"Open", "AITA Men's and Women's Nationals"},
	}},
	"chess": {Min: 5, Max: 99, Brackets: []Bracket{
		{"Under-9", "National Under-9 Chess Championship"},
		{"Under-11", "National Under-11 Chess Championship"},
		{"Under-13", "National Under-13 Chess Championship"},
		{"Under-17", "National Under-17 Chess Championship"},
		{"Under-19", "National Junior Chess Championship"},
		{"Open", "National Premier Chess Championship"},
	}},
}

var boundPattern = regexp.MustCompile(`\d+`)

// bound extracts the numeric age bound of a label; labels without one sort last.
func bound(label string) float64 {
	m := boundPattern.FindString(label)
	if m == "" {
		return math.Inf(1)
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return math.Inf(1)
	}
	return float64(n)
}

// Lookup returns the rule for sport and whether it is listed.
func Lookup(sport string) (SportRule, bool) {
	rule, ok := rules[strings.ToLower(strings.TrimSpace(sport))]
	if !ok {
		return genericRule, false
	}
	return rule, true
}

// Sports lists the sports with their own table.
func Sports() []string {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate resolves the eligibility of a player of the given age.
func Evaluate(sport string, age int) Verdict {
	rule, _ := Lookup(sport)
	v := Verdict{Sport: sport, Age: age, MinAge: rule.Min, MaxAge: rule.Max}
	switch {
	case age < rule.Min:
		v.Status = TooYoung
		return v
	case age > rule.Max:
		v.Status = TooOld
		return v
	}

	v.Status = Eligible
	v.Category = OpenCategory
	brackets := append([]Bracket(nil), rule.Brackets...)
	sort.SliceStable(brackets, func(i, j int) bool {
		return bound(brackets[i].Label) < bound(brackets[j].Label)
	})
	for _, b := range brackets {
		if bound(b.Label) >= float64(age) {
			v.Category = b.Label
			v.Competition = b.Competition
			return v
		}
	}
	return v
}

// Describe renders the verdict as a short message.
func (v Verdict) Describe() string {
	switch v.Status {
	case TooYoung:
		return "At " + strconv.Itoa(v.Age) + " you are a little young for " + v.Sport + ". Most programmes start at " + strconv.Itoa(v.MinAge) + "."
	case TooOld:
		return "Competitive " + v.Sport + " categories usually close at " + strconv.Itoa(v.MaxAge) + ". Recreational leagues are still open to you."
	}
	msg := "You are eligible for the " + v.Category + " category in " + v.Sport + "."
	if v.Competition != "" {
		msg += " Competitions: " + v.Competition + "."
	}
	return msg
}
