package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"CareerBot/eligibility"
	"CareerBot/model"
	"CareerBot/questionnaire"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

const advisorSystem = "You are an experienced career and education counsellor in India. " +
	"Answer with a single JSON object and nothing else."

// Advisor owns the prompts of every generation call site and decodes their
// replies. A reply that does not decode yields an empty value, not an error.
type Advisor struct {
	gen Generator
}

func NewAdvisor(gen Generator) *Advisor {
	return &Advisor{gen: gen}
}

// Brief is a flattened questionnaire, field name -> answer.
type Brief map[string]string

func (b Brief) String() string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		if b[k] == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", k, b[k])
	}
	return sb.String()
}

// BriefFrom flattens answers in field order of flow.
func BriefFrom(flow *questionnaire.Flow, answers questionnaire.Answers) Brief {
	b := make(Brief)
	for _, step := range flow.Steps {
		for _, f := range step.Fields {
			if v, ok := answers[f.Name]; ok {
				b[f.Name] = v.String()
			}
		}
	}
	return b
}

type itemsReply struct {
	Summary string                 `json:"summary"`
	Items   []model.Recommendation `json:"items"`
}

const itemsShape = `{"summary": string, "items": [{"title": string, "description": string, "highlights": [string]}]}`

// decode unmarshals raw into v, logging and reporting false on failure.
func decode(site, raw string, v interface{}) bool {
	if err := sonic.UnmarshalString(stripFences(raw), v); err != nil {
		log.Warn().Err(err).Str("site", site).Msg("malformed generation reply")
		return false
	}
	return true
}

func (a *Advisor) items(ctx context.Context, site string, kind model.ResultKind, prompt string) (model.RemoteResult, error) {
	raw, err := a.gen.Generate(ctx, advisorSystem, prompt+"\n\nRespond as JSON shaped like "+itemsShape)
	if err != nil {
		return model.RemoteResult{}, err
	}
	var reply itemsReply
	if !decode(site, raw, &reply) {
		return model.RemoteResult{}, nil
	}
	items := reply.Items[:0:0]
	for _, it := range reply.Items {
		if strings.TrimSpace(it.Title) != "" {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return model.RemoteResult{}, nil
	}
	return model.RemoteResult{Kind: kind, Items: items, Summary: reply.Summary}, nil
}

// Careers recommends career paths. Advanced mode asks for a wider spread.
func (a *Advisor) Careers(ctx context.Context, brief Brief, advanced bool) (model.RemoteResult, error) {
	n := 3
	if advanced {
		n = 6
	}
	prompt := fmt.Sprintf("Suggest %d career paths for this student.\n%s", n, brief)
	return a.items(ctx, "careers", model.KindCareer, prompt)
}

func (a *Advisor) BusinessIdeas(ctx context.Context, brief Brief) (model.RemoteResult, error) {
	prompt := "Suggest 4 small business ideas that fit this budget (INR) and background.\n" + brief.String()
	return a.items(ctx, "business", model.KindBusiness, prompt)
}

func (a *Advisor) ChildAbilities(ctx context.Context, brief Brief) (model.RemoteResult, error) {
	prompt := "A parent describes their child. Identify the child's likely natural abilities and " +
		"suggest activities to nurture each one.\n" + brief.String()
	return a.items(ctx, "child", model.KindChild, prompt)
}

// SportsPathways turns an eligibility verdict into training suggestions.
func (a *Advisor) SportsPathways(ctx context.Context, v eligibility.Verdict, city string) (model.RemoteResult, error) {
	prompt := fmt.Sprintf("An athlete aged %d plays %s (%s). They live in %s. "+
		"Suggest 3 concrete next steps for training and competition.", v.Age, v.Sport, v.Describe(), city)
	return a.items(ctx, "sports", model.KindSports, prompt)
}

var documentPrompts = map[questionnaire.View]string{
	questionnaire.ViewDetail:       "Explain %q in depth: what the work involves, required education, and typical pay in India.",
	questionnaire.ViewRoadmap:      "Write a step-by-step roadmap to reach %q, grouped by stage.",
	questionnaire.ViewInterview:    "Prepare interview questions with short model answers for %q.",
	questionnaire.ViewDeepDive:     "Give a deep dive on %q: market trends, risks and growth options.",
	questionnaire.ViewConsultation: "Summarise %q for a one-to-one counselling session: key questions to discuss and preparation notes.",
}

const documentShape = `{"title": string, "sections": [{"heading": string, "points": [string]}]}`

// Document produces the payload of an explorer view for rec.
func (a *Advisor) Document(ctx context.Context, view questionnaire.View, rec model.Recommendation, brief Brief) (model.Document, error) {
	tmpl, ok := documentPrompts[view]
	if !ok {
		return model.Document{}, fmt.Errorf("no document for view %q", view)
	}
	prompt := fmt.Sprintf(tmpl, rec.Title) + "\nContext:\n" + rec.Description + "\n" + brief.String() +
		"\nRespond as JSON shaped like " + documentShape
	raw, err := a.gen.Generate(ctx, advisorSystem, prompt)
	if err != nil {
		return model.Document{}, err
	}
	var doc model.Document
	if !decode(string(view), raw, &doc) {
		return model.Document{}, nil
	}
	if doc.Title == "" && len(doc.Sections) > 0 {
		doc.Title = rec.Title
	}
	return doc, nil
}

const quizShape = `{"questions": [{"question": string, "options": [string], "answer": string}]}`

// Quiz writes a multiple choice test. Only the teaching subjects are supported.
func (a *Advisor) Quiz(ctx context.Context, subject, class, topic string, count int) ([]model.QuizQuestion, error) {
	supported := false
	for _, s := range questionnaire.TeachingSubjects {
		if s == subject {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedSubject, subject)
	}

	prompt := fmt.Sprintf("Write %d multiple choice questions on %q in %s for class %s. "+
		"Each question has 4 options and the answer is one of the options verbatim.\nRespond as JSON shaped like %s",
		count, topic, subject, class, quizShape)
	raw, err := a.gen.Generate(ctx, advisorSystem, prompt)
	if err != nil {
		return nil, err
	}
	var reply struct {
		Questions []model.QuizQuestion `json:"questions"`
	}
	if !decode("quiz", raw, &reply) {
		return nil, nil
	}
	valid := reply.Questions[:0:0]
	for _, q := range reply.Questions {
		if q.Question == "" || len(q.Options) < 2 {
			continue
		}
		for _, opt := range q.Options {
			if opt == q.Answer {
				valid = append(valid, q)
				break
			}
		}
	}
	return valid, nil
}

// Academies lists training academies for sport near city.
func (a *Advisor) Academies(ctx context.Context, sport, city string) ([]model.SavedAcademy, error) {
	prompt := fmt.Sprintf("List up to 5 well known %s academies in or near %s, India. "+
		`Respond as JSON shaped like {"academies": [{"name": string, "address": string}]}`, sport, city)
	raw, err := a.gen.Generate(ctx, advisorSystem, prompt)
	if err != nil {
		return nil, err
	}
	var reply struct {
		Academies []model.SavedAcademy `json:"academies"`
	}
	if !decode("academies", raw, &reply) {
		return nil, nil
	}
	out := reply.Academies[:0:0]
	for _, ac := range reply.Academies {
		if ac.Name == "" {
			continue
		}
		ac.Sport = sport
		ac.ID = academyID(sport, ac.Name)
		out = append(out, ac)
	}
	return out, nil
}

// academyID is derived from content so the same academy toggles the same entry.
func academyID(sport, name string) string {
	id := strings.ToLower(sport + "-" + name)
	return strings.Join(strings.FieldsFunc(id, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "-")
}
