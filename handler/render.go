package handler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"CareerBot/model"
	"CareerBot/questionnaire"

	"github.com/go-telegram/bot/models"
)

const optionsPerRow = 2

// leafViews lists the drill-downs offered under a detail view, per result kind.
var leafViews = map[model.ResultKind][]questionnaire.View{
	model.KindCareer:   {questionnaire.ViewRoadmap, questionnaire.ViewInterview, questionnaire.ViewConsultation},
	model.KindBusiness: {questionnaire.ViewRoadmap, questionnaire.ViewDeepDive, questionnaire.ViewConsultation},
	model.KindChild:    {questionnaire.ViewRoadmap},
	model.KindSports:   {questionnaire.ViewRoadmap},
}

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func chunk(buttons []models.InlineKeyboardButton, n int) [][]models.InlineKeyboardButton {
	var rows [][]models.InlineKeyboardButton
	for len(buttons) > 0 {
		k := n
		if len(buttons) < k {
			k = len(buttons)
		}
		rows = append(rows, buttons[:k])
		buttons = buttons[k:]
	}
	return rows
}

// typedField reports whether f takes its answer as a text message.
func typedField(f questionnaire.Field, options []string) bool {
	return len(options) == 0 || f.Kind == questionnaire.FieldText || f.Kind == questionnaire.FieldNumber
}

// inputField picks the field a typed message fills: the explicit choice when
// it is on screen, otherwise the first empty typed field of the step.
func inputField(snap questionnaire.Snapshot, options func(questionnaire.Field) []string, editing string) (questionnaire.Field, bool) {
	var first *questionnaire.Field
	for i := range snap.StepDef.Fields {
		f := snap.StepDef.Fields[i]
		if !f.Visible(snap.Flags) || !typedField(f, options(f)) {
			continue
		}
		if f.Name == editing {
			return f, true
		}
		if first == nil && !snap.Answers.Has(f.Name) {
			first = &snap.StepDef.Fields[i]
		}
	}
	if first == nil {
		return questionnaire.Field{}, false
	}
	return *first, true
}

// renderStep draws one questionnaire step: the answers so far, field errors,
// the option buttons and the navigation row.
func renderStep(snap questionnaire.Snapshot, options func(questionnaire.Field) []string, editing string) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s · Step %d of %d\n%s\n\n", snap.FlowName, snap.Step+1, snap.StepCount, snap.StepDef.Title)

	var rows [][]models.InlineKeyboardButton
	for i, f := range snap.StepDef.Fields {
		if !f.Visible(snap.Flags) {
			continue
		}
		label := capitalize(f.Label)
		if f.Kind == questionnaire.FieldMulti && f.Limit > 0 {
			label += fmt.Sprintf(" (up to %d)", f.Limit)
		}
		value := snap.Answers[f.Name].String()
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&sb, "• %s: %s\n", label, value)
		if msg, ok := snap.Errors[f.Name]; ok {
			fmt.Fprintf(&sb, "  ⚠ %s\n", msg)
		}

		opts := options(f)
		if typedField(f, opts) {
			rows = append(rows, []models.InlineKeyboardButton{button("✏️ "+label, fmt.Sprintf("opt:%d:edit", i))})
			continue
		}
		selected := snap.Answers[f.Name]
		buttons := make([]models.InlineKeyboardButton, 0, len(opts))
		for j, opt := range opts {
			text := opt
			if selected.Text == opt || containsItem(selected.Items, opt) {
				text = "✓ " + opt
			}
			buttons = append(buttons, button(text, "opt:"+strconv.Itoa(i)+":"+strconv.Itoa(j)))
		}
		rows = append(rows, chunk(buttons, optionsPerRow)...)
	}

	if f, ok := inputField(snap, options, editing); ok {
		fmt.Fprintf(&sb, "\n✏️ Type your answer for: %s", capitalize(f.Label))
		if f.Kind == questionnaire.FieldMulti {
			sb.WriteString(" (comma separated)")
		}
		sb.WriteString("\n")
	}
	if snap.Loading {
		fmt.Fprintf(&sb, "\n⏳ %s\n", snap.Status)
	}
	if snap.Alert != "" {
		fmt.Fprintf(&sb, "\n⚠️ %s\n", snap.Alert)
	}

	var nav []models.InlineKeyboardButton
	if snap.Step > 0 {
		nav = append(nav, button("« Back", "nav:back"))
	}
	if snap.Step == snap.StepCount-1 {
		nav = append(nav, button("Submit ✔", "nav:next"))
	} else {
		nav = append(nav, button("Next »", "nav:next"))
	}
	rows = append(rows, nav, []models.InlineKeyboardButton{button("↺ Start over", "nav:reset")})

	return strings.TrimRight(sb.String(), "\n"), &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func containsItem(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

// explorerView is everything renderExplorer needs from the session and conversation.
type explorerView struct {
	Result     model.RemoteResult
	View       questionnaire.View
	Item       int
	Doc        *model.Document
	Saved      bool
	CanChange  bool
	Alert      string
	Loading    string
	Academies  []model.SavedAcademy
	AcademySet map[string]bool
}

func renderDocument(sb *strings.Builder, doc *model.Document) {
	if doc == nil {
		return
	}
	if doc.Title != "" {
		fmt.Fprintf(sb, "%s\n", doc.Title)
	}
	for _, sec := range doc.Sections {
		fmt.Fprintf(sb, "\n%s\n", sec.Heading)
		for _, p := range sec.Points {
			fmt.Fprintf(sb, "  • %s\n", p)
		}
	}
}

// renderExplorer draws the results list or one of its drill-down views.
func renderExplorer(v explorerView) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	var rows [][]models.InlineKeyboardButton

	switch {
	case v.View == questionnaire.ViewList:
		if v.Result.Summary != "" {
			fmt.Fprintf(&sb, "%s\n\n", v.Result.Summary)
		}
		for i, rec := range v.Result.Items {
			fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, rec.Title, rec.Description)
			rows = append(rows, []models.InlineKeyboardButton{button(fmt.Sprintf("%d. %s", i+1, rec.Title), fmt.Sprintf("res:open:%d", i))})
		}
		if len(v.Academies) > 0 {
			sb.WriteString("\nAcademies near you:\n")
			for i, ac := range v.Academies {
				fmt.Fprintf(&sb, "• %s, %s\n", ac.Name, ac.Address)
				mark := "☆ Save "
				if v.AcademySet[ac.ID] {
					mark = "★ Saved "
				}
				rows = append(rows, []models.InlineKeyboardButton{button(mark+ac.Name, fmt.Sprintf("res:academy:%d", i))})
			}
		}
		var tail []models.InlineKeyboardButton
		if v.CanChange {
			tail = append(tail, button("✎ Change answers", "nav:change"))
		}
		tail = append(tail, button("↺ Start over", "nav:reset"))
		rows = append(rows, tail)

	case v.View == questionnaire.ViewDetail:
		renderDocument(&sb, v.Doc)
		var leaves []models.InlineKeyboardButton
		for _, leaf := range leafViews[v.Result.Kind] {
			leaves = append(leaves, button(capitalize(leaf.Label()), fmt.Sprintf("res:%s:%d", leaf, v.Item)))
		}
		rows = append(rows, chunk(leaves, optionsPerRow)...)
		save := "☆ Save"
		if v.Saved {
			save = "★ Saved"
		}
		rows = append(rows, []models.InlineKeyboardButton{button(save, fmt.Sprintf("res:save:%d", v.Item)), button("« Back", "res:back")})

	default:
		fmt.Fprintf(&sb, "%s\n", capitalize(v.View.Label()))
		renderDocument(&sb, v.Doc)
		rows = append(rows, []models.InlineKeyboardButton{button("« Back", "res:back")})
	}

	if v.Loading != "" {
		fmt.Fprintf(&sb, "\n⏳ %s\n", v.Loading)
	}
	if v.Alert != "" {
		fmt.Fprintf(&sb, "\n⚠️ %s\n", v.Alert)
	}
	return strings.TrimRight(sb.String(), "\n"), &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// renderSummary draws results that have no explorer, such as a quiz score.
func renderSummary(res model.RemoteResult) (string, *models.InlineKeyboardMarkup) {
	return res.Summary, &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("↺ Start over", "nav:reset")},
	}}
}

// renderUpsell offers the plans that unlock feature.
func renderUpsell(feature model.Feature) (string, *models.InlineKeyboardMarkup) {
	var rows [][]models.InlineKeyboardButton
	for _, plan := range model.PlansWith(feature) {
		rows = append(rows, []models.InlineKeyboardButton{
			button(fmt.Sprintf("%s · ₹%.0f", capitalize(string(plan)), model.PlanPrices[plan]), "sub:"+string(plan)),
		})
	}
	text := "This feature is part of a paid plan. Pick a plan to unlock it:"
	return text, &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// renderDashboard lists saved artifacts and academies.
func renderDashboard(u *model.User) (string, *models.InlineKeyboardMarkup) {
	if u == nil || (len(u.SavedBusinessIdeas) == 0 && len(u.SavedAcademies) == 0) {
		return "You have nothing saved yet. Open a result and tap ☆ Save to keep it here.", nil
	}
	var sb strings.Builder
	var rows [][]models.InlineKeyboardButton
	if len(u.SavedBusinessIdeas) > 0 {
		sb.WriteString("Saved results:\n")
		for _, a := range u.SavedBusinessIdeas {
			fmt.Fprintf(&sb, "• [%s] %s\n", a.Type, a.Title)
			rows = append(rows, []models.InlineKeyboardButton{button("Open "+a.Title, "dl:"+a.ID)})
		}
	}
	if len(u.SavedAcademies) > 0 {
		sb.WriteString("\nSaved academies:\n")
		for _, ac := range u.SavedAcademies {
			fmt.Fprintf(&sb, "• %s (%s), %s\n", ac.Name, ac.Sport, ac.Address)
		}
	}
	var kb *models.InlineKeyboardMarkup
	if len(rows) > 0 {
		kb = &models.InlineKeyboardMarkup{InlineKeyboard: rows}
	}
	return strings.TrimRight(sb.String(), "\n"), kb
}
