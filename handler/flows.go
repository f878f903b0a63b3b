package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CareerBot/eligibility"
	"CareerBot/model"
	"CareerBot/questionnaire"
	"CareerBot/repo"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

type flowEntry struct {
	feature model.Feature
	build   func() *questionnaire.Flow
}

var commandFlows = map[string]flowEntry{
	"/career":     {model.FeatureCareer, questionnaire.CareerPath},
	"/business":   {model.FeatureBusiness, questionnaire.BusinessBlaster},
	"/child":      {model.FeatureChild, questionnaire.ChildAbility},
	"/sports":     {model.FeatureSports, questionnaire.SportsEligibility},
	"/createtest": {model.FeatureCreateTest, questionnaire.TeacherTest},
}

// flowForKind rebuilds the flow a saved artifact came from.
func flowForKind(kind model.ResultKind) (flowEntry, bool) {
	switch kind {
	case model.KindCareer:
		return commandFlows["/career"], true
	case model.KindBusiness:
		return commandFlows["/business"], true
	case model.KindChild:
		return commandFlows["/child"], true
	case model.KindSports:
		return commandFlows["/sports"], true
	}
	return flowEntry{}, false
}

// startFlow opens a questionnaire after checking the user's plan.
func (h *CareerBotHandler) startFlow(ctx context.Context, s Sender, conv *Conversation, entry flowEntry) {
	u, err := h.loadUser(ctx, conv)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error loading user")
		h.send(ctx, s, conv.ChatID, "Error loading your account. Please try again later.", nil)
		return
	}
	if !u.Allows(entry.feature) {
		text, kb := renderUpsell(entry.feature)
		h.send(ctx, s, conv.ChatID, text, kb)
		return
	}
	conv.close()
	conv.open(entry.build(), entry.feature)
	conv.advanced = entry.feature == model.FeatureCareer && u.Allows(model.FeatureCareerAdvanced)
	h.renderCurrent(ctx, s, conv)
}

func (h *CareerBotHandler) startProfile(ctx context.Context, s Sender, conv *Conversation) {
	u, err := h.loadUser(ctx, conv)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error loading user")
		h.send(ctx, s, conv.ChatID, "Error loading your account. Please try again later.", nil)
		return
	}
	pending := conv.pendingPlan
	conv.close()
	conv.pendingPlan = pending
	sess := conv.open(questionnaire.Profile(), "")
	sess.SetInput(questionnaire.FieldName, u.Name)
	sess.SetInput(questionnaire.FieldEmail, u.Email)
	sess.SetInput(questionnaire.FieldPhone, u.Phone)
	h.renderCurrent(ctx, s, conv)
}

// loadOptions fills runtime option lists, such as subjects for the chosen class.
func (h *CareerBotHandler) loadOptions(ctx context.Context, conv *Conversation, snap questionnaire.Snapshot) {
	for _, f := range snap.StepDef.Fields {
		if len(f.Options) > 0 || f.Name != questionnaire.FieldSubjects || !f.Visible(snap.Flags) {
			continue
		}
		subjects, err := h.FirebaseConnector.Subjects(ctx, conv.session.HierarchyPath())
		if err != nil {
			log.Warn().Err(err).Str("user", conv.UserID).Msg("error loading subjects")
		}
		conv.options[f.Name] = subjects
	}
}

// renderCurrent draws whatever the active session shows. Callers hold conv.mu.
func (h *CareerBotHandler) renderCurrent(ctx context.Context, s Sender, conv *Conversation) {
	sess := conv.session
	if sess == nil {
		h.send(ctx, s, conv.ChatID, "Nothing in progress. Use /help to start.", nil)
		return
	}
	snap := sess.Snapshot()
	switch snap.Phase {
	case questionnaire.PhaseCollecting, questionnaire.PhaseSubmitting:
		h.loadOptions(ctx, conv, snap)
		text, kb := renderStep(snap, conv.optionsFor, conv.editing)
		if snap.Phase == questionnaire.PhaseSubmitting {
			kb = nil
		}
		h.send(ctx, s, conv.ChatID, text, kb)
	case questionnaire.PhaseResult:
		text, kb := h.resultView(conv, snap)
		h.send(ctx, s, conv.ChatID, text, kb)
	}
}

func (h *CareerBotHandler) resultView(conv *Conversation, snap questionnaire.Snapshot) (string, *models.InlineKeyboardMarkup) {
	e := conv.session.Explorer()
	if snap.Result == nil || e == nil || len(snap.Result.Items) == 0 {
		var res model.RemoteResult
		if snap.Result != nil {
			res = *snap.Result
		}
		return renderSummary(res)
	}
	view, item, doc := e.Current()
	v := explorerView{
		Result:     *snap.Result,
		View:       view,
		Item:       item,
		Doc:        doc,
		CanChange:  conv.session.Flow().ChangePathStep >= 0,
		Alert:      snap.Alert,
		Academies:  conv.academies,
		AcademySet: conv.academySet,
	}
	if snap.Loading {
		v.Loading = snap.Status
	}
	if view == questionnaire.ViewDetail {
		if a, ok := e.ArtifactFor(item, time.Now()); ok {
			v.Saved = conv.savedIDs[a.ID]
		}
	}
	return renderExplorer(v)
}

// beginSubmit starts generation for a session that just entered submitting.
func (h *CareerBotHandler) beginSubmit(ctx context.Context, s Sender, conv *Conversation) {
	sess := conv.session
	task, after := h.taskFor(conv, sess)
	advanced := conv.advanced
	status := "Thinking about your answers..."
	h.goTask(func() {
		out := h.runner.Submit(ctx, sess, sess.Flow().Name, status, task)
		if out.Stale {
			return
		}
		if out.Err == nil && out.Result != nil {
			h.deliverResult(ctx, s, conv, sess, *out.Result, advanced, after)
			return
		}
		conv.mu.Lock()
		defer conv.mu.Unlock()
		if conv.session == sess {
			h.renderCurrent(ctx, s, conv)
		}
	})
}

func (h *CareerBotHandler) sendPhoto(ctx context.Context, s Sender, chatID int64, url, caption string) {
	_, err := s.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileString{Data: url},
		Caption: caption,
	})
	if err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("error sending photo")
	}
}

// deliverResult renders a fresh result. Basic mode waits for every card image
// first; advanced mode shows the list at once and streams images in.
func (h *CareerBotHandler) deliverResult(ctx context.Context, s Sender, conv *Conversation, sess *questionnaire.Session, res model.RemoteResult, advanced bool, after afterFunc) {
	titles := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		titles = append(titles, it.Title)
	}
	withImages := h.images != nil && len(titles) > 0 && res.Kind != model.KindSports

	conv.mu.Lock()
	board := conv.images
	conv.mu.Unlock()

	if withImages && !advanced {
		if err := questionnaire.PrefetchAll(ctx, titles, h.images.CardImage, board); err != nil {
			log.Warn().Err(err).Msg("image prefetch cut short")
		}
		for _, title := range titles {
			if url, ok := board.Get(title); ok {
				h.sendPhoto(ctx, s, conv.ChatID, url, title)
			}
		}
	}

	conv.mu.Lock()
	if conv.session != sess {
		conv.mu.Unlock()
		return
	}
	if after != nil {
		after(ctx, s, conv)
	}
	h.renderCurrent(ctx, s, conv)
	conv.mu.Unlock()

	if withImages && advanced {
		done := questionnaire.PrefetchStream(ctx, titles, h.images.CardImage, board, func(title, url string) {
			h.sendPhoto(ctx, s, conv.ChatID, url, title)
		})
		<-done
	}
}

// afterFunc runs under conv.mu once a result is accepted.
type afterFunc func(ctx context.Context, s Sender, conv *Conversation)

// taskFor builds the generation task of the session's flow and an optional afterFunc.
func (h *CareerBotHandler) taskFor(conv *Conversation, sess *questionnaire.Session) (questionnaire.Task, afterFunc) {
	flow := sess.Flow()
	answers := sess.Answers()
	brief := repo.BriefFrom(flow, answers)

	switch flow.Kind {
	case model.KindCareer:
		advanced := conv.advanced
		return func(ctx context.Context) (model.RemoteResult, error) {
			return h.Advisor.Careers(ctx, brief, advanced)
		}, h.loadSaved
	case model.KindBusiness:
		return func(ctx context.Context) (model.RemoteResult, error) {
			return h.Advisor.BusinessIdeas(ctx, brief)
		}, h.loadSaved
	case model.KindChild:
		return func(ctx context.Context) (model.RemoteResult, error) {
			return h.Advisor.ChildAbilities(ctx, brief)
		}, h.loadSaved
	case model.KindSports:
		return h.sportsTask(answers)
	case model.KindTestSetup:
		return h.testSetupTask(conv.UserID, answers), nil
	case model.KindQuiz:
		return h.quizTask(conv, answers), nil
	case model.KindProfile:
		return h.profileTask(conv.UserID, answers), h.afterProfile
	}
	return func(ctx context.Context) (model.RemoteResult, error) {
		return model.RemoteResult{}, fmt.Errorf("no task for flow %q", flow.Name)
	}, nil
}

// loadSaved marks which results the user already saved.
func (h *CareerBotHandler) loadSaved(ctx context.Context, s Sender, conv *Conversation) {
	u, err := h.FirebaseConnector.GetUser(ctx, conv.UserID)
	if err != nil {
		return
	}
	for _, a := range u.SavedBusinessIdeas {
		conv.savedIDs[a.ID] = true
	}
	for _, ac := range u.SavedAcademies {
		conv.academySet[ac.ID] = true
	}
}

func (h *CareerBotHandler) sportsTask(answers questionnaire.Answers) (questionnaire.Task, afterFunc) {
	sport := strings.TrimSpace(answers.Text(questionnaire.FieldSport))
	city := answers.Text(questionnaire.FieldLocation)
	verdict := eligibility.Evaluate(sport, int(answers.Number(questionnaire.FieldAge)))

	var academies []model.SavedAcademy
	task := func(ctx context.Context) (model.RemoteResult, error) {
		res, err := h.Advisor.SportsPathways(ctx, verdict, city)
		if err != nil {
			return model.RemoteResult{}, err
		}
		if verdict.Status == eligibility.Eligible {
			list, err := h.Advisor.Academies(ctx, sport, city)
			if err != nil {
				log.Warn().Err(err).Str("sport", sport).Msg("academy lookup failed")
			}
			academies = list
		}
		res.Kind = model.KindSports
		res.Summary = strings.TrimSpace(verdict.Describe() + "\n\n" + res.Summary)
		return res, nil
	}
	after := func(ctx context.Context, s Sender, conv *Conversation) {
		conv.academies = academies
		h.loadSaved(ctx, s, conv)
	}
	return task, after
}

func (h *CareerBotHandler) testSetupTask(teacherID string, answers questionnaire.Answers) questionnaire.Task {
	subject := answers.Text(questionnaire.FieldSubject)
	class := answers.Text(questionnaire.FieldClass)
	topic := answers.Text(questionnaire.FieldTopic)
	count := int(answers.Number(questionnaire.FieldCount))
	return func(ctx context.Context) (model.RemoteResult, error) {
		questions, err := h.Advisor.Quiz(ctx, subject, class, topic, count)
		if err != nil || len(questions) == 0 {
			return model.RemoteResult{}, err
		}
		test, err := h.FirebaseConnector.CreateTest(ctx, model.AssignedTest{
			TeacherID:  teacherID,
			Subject:    subject,
			ClassLevel: class,
			Topic:      topic,
			Questions:  questions,
		})
		if err != nil {
			return model.RemoteResult{}, err
		}
		return model.RemoteResult{
			Kind: model.KindTestSetup,
			Summary: fmt.Sprintf("Test created with %d questions on %s.\nShare this password with your students: %s\nUse /testresult to see submissions.",
				len(test.Questions), test.Topic, test.Password),
		}, nil
	}
}

func (h *CareerBotHandler) quizTask(conv *Conversation, answers questionnaire.Answers) questionnaire.Task {
	test := conv.test
	student := model.TestSubmission{StudentID: conv.UserID, StudentName: conv.DisplayName}
	return func(ctx context.Context) (model.RemoteResult, error) {
		if test == nil {
			return model.RemoteResult{}, model.ErrTestDoesNotExist
		}
		student.Answers = questionnaire.QuizAnswers(answers, len(test.Questions))
		student.Score = test.Grade(student.Answers)
		student.CompletedAt = time.Now()
		if err := h.FirebaseConnector.CompleteTest(ctx, test.ID, student); err != nil {
			return model.RemoteResult{}, err
		}
		return model.RemoteResult{
			Kind:    model.KindQuiz,
			Summary: fmt.Sprintf("Test submitted. You scored %d out of %d.", student.Score, len(test.Questions)),
		}, nil
	}
}

// afterProfile resumes a checkout that was waiting for contact details.
func (h *CareerBotHandler) afterProfile(ctx context.Context, s Sender, conv *Conversation) {
	plan := conv.pendingPlan
	if plan == "" {
		return
	}
	conv.pendingPlan = ""
	h.checkout(ctx, s, conv, plan)
}

func (h *CareerBotHandler) profileTask(userID string, answers questionnaire.Answers) questionnaire.Task {
	p := model.Profile{
		Name:  answers.Text(questionnaire.FieldName),
		Email: answers.Text(questionnaire.FieldEmail),
		Phone: answers.Text(questionnaire.FieldPhone),
	}
	return func(ctx context.Context) (model.RemoteResult, error) {
		if err := h.FirebaseConnector.UpsertProfile(ctx, userID, p); err != nil {
			return model.RemoteResult{}, err
		}
		return model.RemoteResult{Kind: model.KindProfile, Summary: "Profile saved."}, nil
	}
}
