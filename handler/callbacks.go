package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CareerBot/model"
	"CareerBot/questionnaire"
	"CareerBot/repo"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

func (h *CareerBotHandler) answer(ctx context.Context, s Sender, cq *models.CallbackQuery, text string) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            text,
	})
	if err != nil {
		log.Warn().Err(err).Msg("error answering callback")
	}
}

func callbackChatID(cq *models.CallbackQuery) int64 {
	if cq.Message.Message != nil {
		return cq.Message.Message.Chat.ID
	}
	return cq.From.ID
}

func (h *CareerBotHandler) handleCallback(ctx context.Context, s Sender, cq *models.CallbackQuery) {
	conv := h.convs.get(callbackChatID(cq), cq.From.ID)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.DisplayName = displayName(&cq.From)

	prefix, rest, _ := strings.Cut(cq.Data, ":")
	log.Debug().Int64("chat", conv.ChatID).Str("data", cq.Data).Msg("callback")

	notice := ""
	switch prefix {
	case "nav":
		notice = h.onNav(ctx, s, conv, rest)
	case "opt":
		notice = h.onOption(ctx, s, conv, rest)
	case "res":
		notice = h.onResult(ctx, s, conv, rest)
	case "sub":
		plan, ok := model.ParsePlan(rest)
		if !ok {
			notice = "Unknown plan."
			break
		}
		h.subscribe(ctx, s, conv, plan)
	case "dl":
		h.openSaved(ctx, s, conv, rest)
	default:
		notice = "Unknown action."
	}
	h.answer(ctx, s, cq, notice)
}

func (h *CareerBotHandler) onNav(ctx context.Context, s Sender, conv *Conversation, action string) string {
	sess := conv.session
	if sess == nil {
		return "Nothing in progress."
	}
	verb, arg, _ := strings.Cut(action, ":")
	switch verb {
	case "back":
		sess.Back()
	case "next":
		conv.editing = ""
		sess.Next()
		if sess.Snapshot().Phase == questionnaire.PhaseSubmitting {
			h.renderCurrent(ctx, s, conv)
			h.beginSubmit(ctx, s, conv)
			return ""
		}
	case "reset":
		sess.Reset()
		conv.editing = ""
		conv.academies = nil
	case "change":
		if !sess.ChangePath() {
			return "This questionnaire has nothing to change."
		}
	case "goto":
		i, err := strconv.Atoi(arg)
		if err != nil {
			return "Unknown step."
		}
		sess.Goto(i)
	default:
		return "Unknown action."
	}
	h.renderCurrent(ctx, s, conv)
	return ""
}

// onOption handles "<field>:<option>" and "<field>:edit".
func (h *CareerBotHandler) onOption(ctx context.Context, s Sender, conv *Conversation, action string) string {
	sess := conv.session
	if sess == nil {
		return "Nothing in progress."
	}
	snap := sess.Snapshot()
	if snap.Phase != questionnaire.PhaseCollecting {
		return "Please wait..."
	}
	fieldArg, optArg, _ := strings.Cut(action, ":")
	fi, err := strconv.Atoi(fieldArg)
	if err != nil || fi < 0 || fi >= len(snap.StepDef.Fields) {
		return "That button is out of date."
	}
	f := snap.StepDef.Fields[fi]

	if optArg == "edit" {
		conv.editing = f.Name
		prompt := "Type your answer for: " + capitalize(f.Label)
		if f.Kind == questionnaire.FieldMulti {
			prompt += " (comma separated)"
		}
		h.send(ctx, s, conv.ChatID, prompt, nil)
		return ""
	}

	opts := conv.optionsFor(f)
	j, err := strconv.Atoi(optArg)
	if err != nil || j < 0 || j >= len(opts) {
		return "That button is out of date."
	}
	switch f.Kind {
	case questionnaire.FieldMulti:
		picked := snap.Answers.Items(f.Name)
		if f.Limit > 0 && len(picked) >= f.Limit && !containsItem(picked, opts[j]) {
			return fmt.Sprintf("You can pick up to %d.", f.Limit)
		}
		sess.Toggle(f.Name, opts[j], f.Limit)
	default:
		sess.Set(f.Name, questionnaire.TextValue(opts[j]))
	}
	h.renderCurrent(ctx, s, conv)
	return ""
}

func (h *CareerBotHandler) onResult(ctx context.Context, s Sender, conv *Conversation, action string) string {
	sess := conv.session
	if sess == nil || sess.Explorer() == nil {
		return "These results are no longer open."
	}
	e := sess.Explorer()
	verb, arg, _ := strings.Cut(action, ":")
	if verb == "back" {
		e.Back()
		h.renderCurrent(ctx, s, conv)
		return ""
	}

	item, err := strconv.Atoi(arg)
	if err != nil {
		return "That button is out of date."
	}
	switch verb {
	case "open":
		return h.drill(ctx, s, conv, questionnaire.ViewDetail, item)
	case "save":
		return h.toggleSaved(ctx, s, conv, e, item)
	case "academy":
		return h.toggleAcademy(ctx, s, conv, item)
	}
	view := questionnaire.View(verb)
	if !view.IsLeaf() {
		return "Unknown action."
	}
	return h.drill(ctx, s, conv, view, item)
}

// drill enters an explorer view in the background; memoized views come back at once.
func (h *CareerBotHandler) drill(ctx context.Context, s Sender, conv *Conversation, view questionnaire.View, item int) string {
	sess := conv.session
	rec, ok := sess.Explorer().Item(item)
	if !ok {
		return "That button is out of date."
	}
	brief := repo.BriefFrom(sess.Flow(), sess.Answers())
	task := func(ctx context.Context) (model.Document, error) {
		return h.Advisor.Document(ctx, view, rec, brief)
	}
	contact := model.Profile{Name: conv.DisplayName}
	if u, err := h.FirebaseConnector.GetUser(ctx, conv.UserID); err == nil {
		contact = model.Profile{Name: u.Name, Email: u.Email, Phone: u.Phone}
	}

	h.goTask(func() {
		out := h.runner.Drill(ctx, sess, view, item, task)
		if out.Stale {
			return
		}
		conv.mu.Lock()
		defer conv.mu.Unlock()
		if conv.session != sess {
			return
		}
		if errors.Is(out.Err, questionnaire.ErrInvalidView) {
			log.Debug().Str("view", string(view)).Int("item", item).Msg("ignoring invalid explorer move")
			return
		}
		if out.Err == nil && !out.Cached && view == questionnaire.ViewConsultation {
			h.requestConsultation(ctx, s, conv, rec, out.Document, contact)
		}
		h.renderCurrent(ctx, s, conv)
	})
	return "Loading " + view.Label() + "..."
}

// requestConsultation mails the counsellor about the chosen recommendation.
func (h *CareerBotHandler) requestConsultation(ctx context.Context, s Sender, conv *Conversation, rec model.Recommendation, doc *model.Document, contact model.Profile) {
	if h.mailer == nil || h.counsellorMail == "" {
		return
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Consultation request from %s (%s, %s)\n\n", contact.Name, contact.Email, contact.Phone)
	fmt.Fprintf(&body, "Topic: %s\n%s\n", rec.Title, rec.Description)
	if doc != nil {
		renderDocument(&body, doc)
	}
	err := h.mailer.Send(ctx, model.Mail{
		To:      []string{h.counsellorMail},
		Subject: "Consultation request: " + rec.Title,
		Body:    body.String(),
	})
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error requesting consultation")
		h.send(ctx, s, conv.ChatID, "We couldn't reach a counsellor right now. Please try again later.", nil)
		return
	}
	h.send(ctx, s, conv.ChatID, "A counsellor has your request and will contact you soon.", nil)
}

func (h *CareerBotHandler) toggleSaved(ctx context.Context, s Sender, conv *Conversation, e *questionnaire.Explorer, item int) string {
	a, ok := e.ArtifactFor(item, time.Now())
	if !ok {
		return "That button is out of date."
	}
	saved, err := h.FirebaseConnector.ToggleSavedArtifact(ctx, conv.UserID, a)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error toggling saved artifact")
		return "Could not save. Please try again."
	}
	if saved {
		conv.savedIDs[a.ID] = true
	} else {
		delete(conv.savedIDs, a.ID)
	}
	h.renderCurrent(ctx, s, conv)
	if saved {
		return "Saved. Find it under /saved."
	}
	return "Removed from saved."
}

func (h *CareerBotHandler) toggleAcademy(ctx context.Context, s Sender, conv *Conversation, i int) string {
	if i < 0 || i >= len(conv.academies) {
		return "That button is out of date."
	}
	ac := conv.academies[i]
	saved, err := h.FirebaseConnector.ToggleSavedAcademy(ctx, conv.UserID, ac)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error toggling academy")
		return "Could not save. Please try again."
	}
	if saved {
		conv.academySet[ac.ID] = true
	} else {
		delete(conv.academySet, ac.ID)
	}
	h.renderCurrent(ctx, s, conv)
	if saved {
		return "Academy saved."
	}
	return "Academy removed."
}
