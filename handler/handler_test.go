package handler

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"CareerBot/model"
	"CareerBot/repo"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChat int64 = 42

var testUser = userIDFor(testChat)

// fakeSender records everything the handler sends.
type fakeSender struct {
	mu       sync.Mutex
	messages []*bot.SendMessageParams
	photos   []*bot.SendPhotoParams
	answers  []string
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, params)
	return &models.Message{ID: len(f.messages)}, nil
}

func (f *fakeSender) SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, params)
	return &models.Message{}, nil
}

func (f *fakeSender) AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, params.Text)
	return true, nil
}

func (f *fakeSender) last() *bot.SendMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1]
}

func (f *fakeSender) find(substr string) *bot.SendMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if strings.Contains(m.Text, substr) {
			return m
		}
	}
	return nil
}

func (f *fakeSender) sent(substr string) bool {
	return f.find(substr) != nil
}

// callbackData flattens the inline keyboard of a message.
func callbackData(m *bot.SendMessageParams) []string {
	kb, ok := m.ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok || kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.CallbackData+b.URL)
		}
	}
	return out
}

type generatorFunc func(ctx context.Context, system, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// cannedReply satisfies every advisor call site at once.
const cannedReply = `{
	"summary": "Here is what fits you",
	"items": [{"title": "Pilot", "description": "Flies aircraft", "highlights": ["travel", "training"]}],
	"title": "Becoming a pilot",
	"sections": [{"heading": "Year 1", "points": ["Get a student licence"]}],
	"questions": [
		{"question": "1+1?", "options": ["1", "2"], "answer": "2"},
		{"question": "2+2?", "options": ["4", "5"], "answer": "4"},
		{"question": "3+3?", "options": ["6", "7"], "answer": "6"}
	],
	"academies": [{"name": "MRF Pace Foundation", "address": "Chennai"}]
}`

func canned() repo.Generator {
	return generatorFunc(func(ctx context.Context, system, prompt string) (string, error) {
		return cannedReply, nil
	})
}

func newTestHandler(t *testing.T, gen repo.Generator, opts ...Option) (*CareerBotHandler, *repo.MemoryStore, *fakeSender) {
	t.Helper()
	store := repo.NewMemoryStore()
	store.SetSubjects([]string{"10"}, []string{"Maths", "Science", "History"})
	h := NewCareerBotHandler(store, repo.NewAdvisor(gen), opts...)
	return h, store, &fakeSender{}
}

func message(text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Chat: models.Chat{ID: testChat},
		From: &models.User{ID: testChat, FirstName: "Asha"},
		Text: text,
	}}
}

func press(data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: testChat, FirstName: "Asha"},
		Data: data,
	}}
}

func drive(h *CareerBotHandler, s Sender, updates ...*models.Update) {
	for _, u := range updates {
		h.Handle(context.Background(), s, u)
	}
}

// careerAnswers walks the career questionnaire up to its submit button.
var careerAnswers = []*models.Update{
	message("/career"),
	message("Asha"),
	press("opt:1:2"), // class 10
	press("nav:next"),
	press("opt:1:0"), // subjects, loaded for class 10
	press("nav:next"),
	press("opt:0:0"),
	press("nav:next"),
	press("opt:0:0"),
	press("opt:1:0"),
	press("nav:next"),
	message("Fly planes"),
}

func TestStartShowsHelp(t *testing.T) {
	h, _, s := newTestHandler(t, canned())
	drive(h, s, message("/start"))
	require.NotNil(t, s.last())
	assert.Contains(t, s.last().Text, "Hey Asha")
	assert.Contains(t, s.last().Text, "/career")
}

func TestLockedFeatureOffersPlans(t *testing.T) {
	h, _, s := newTestHandler(t, canned())
	drive(h, s, message("/business"))
	assert.Contains(t, s.last().Text, "paid plan")
	assert.Equal(t, []string{"sub:student"}, callbackData(s.last()))

	drive(h, s, message("/createtest"))
	assert.Equal(t, []string{"sub:teacher"}, callbackData(s.last()))
}

func TestCareerFlowEndToEnd(t *testing.T) {
	h, store, s := newTestHandler(t, canned())
	drive(h, s, careerAnswers...)
	assert.Contains(t, s.last().Text, "Step 5 of 5")

	drive(h, s, press("nav:next"))
	h.Wait()
	assert.Contains(t, s.last().Text, "Pilot")
	assert.Contains(t, callbackData(s.last()), "res:open:0")
	assert.Contains(t, callbackData(s.last()), "nav:change")

	drive(h, s, press("res:open:0"))
	h.Wait()
	assert.Contains(t, s.last().Text, "Year 1")
	assert.Contains(t, callbackData(s.last()), "res:roadmap:0")

	drive(h, s, press("res:save:0"))
	assert.Equal(t, "Saved. Find it under /saved.", s.lastAnswer())
	u, err := store.GetUser(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, u.SavedBusinessIdeas, 1)
	assert.Equal(t, "Pilot", u.SavedBusinessIdeas[0].Title)
	assert.Equal(t, "travel", u.SavedBusinessIdeas[0].Data["highlight_1"])

	drive(h, s, press("res:save:0"))
	assert.Equal(t, "Removed from saved.", s.lastAnswer())
	u, err = store.GetUser(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, u.SavedBusinessIdeas)
}

func TestSubjectsLoadForChosenClass(t *testing.T) {
	h, _, s := newTestHandler(t, canned())
	drive(h, s, careerAnswers[:4]...)
	assert.Contains(t, s.last().Text, "Academics")
	assert.Contains(t, callbackData(s.last()), "opt:1:2")
	assert.NotContains(t, s.last().Text, "stream", "stream is hidden below class 11")
}

func TestNextShowsValidationErrors(t *testing.T) {
	h, _, s := newTestHandler(t, canned())
	drive(h, s, message("/career"), press("nav:next"))
	assert.Contains(t, s.last().Text, "Step 1 of 5")
	assert.Contains(t, s.last().Text, "⚠")
}

func TestMultiSelectLimit(t *testing.T) {
	h, _, s := newTestHandler(t, canned())
	drive(h, s, careerAnswers[:6]...)
	assert.Contains(t, s.last().Text, "Interests")
	drive(h, s, press("opt:0:0"), press("opt:0:1"), press("opt:0:2"), press("opt:0:3"), press("opt:0:4"))
	drive(h, s, press("opt:0:5"))
	assert.Equal(t, "You can pick up to 5.", s.lastAnswer())
}

func TestResetDropsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, system, prompt string) (string, error) {
		<-release
		return cannedReply, nil
	})
	h, _, s := newTestHandler(t, gen)
	drive(h, s, careerAnswers...)
	drive(h, s, press("nav:next"), press("nav:reset"))
	close(release)
	h.Wait()

	assert.False(t, s.sent("Flies aircraft"))
	assert.Contains(t, s.last().Text, "Step 1 of 5")
}

func TestGenerationFailureReturnsToLastStep(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, system, prompt string) (string, error) {
		return "not json", nil
	})
	h, _, s := newTestHandler(t, gen)
	drive(h, s, careerAnswers...)
	drive(h, s, press("nav:next"))
	h.Wait()
	assert.Contains(t, s.last().Text, "Step 5 of 5")
	assert.Contains(t, s.last().Text, "Failed to generate recommendations")
}

func TestSportsFlowListsAcademies(t *testing.T) {
	h, store, s := newTestHandler(t, canned())
	require.NoError(t, store.ActivateSubscription(context.Background(), testUser, model.PlanBasic))

	drive(h, s, message("/sports"), message("cricket"), message("16"), press("nav:next"), message("Chennai"), press("nav:next"))
	h.Wait()
	assert.Contains(t, s.last().Text, "MRF Pace Foundation")
	assert.Contains(t, callbackData(s.last()), "res:academy:0")

	drive(h, s, press("res:academy:0"))
	assert.Equal(t, "Academy saved.", s.lastAnswer())
	u, err := store.GetUser(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, u.SavedAcademies, 1)
	assert.Equal(t, "cricket", u.SavedAcademies[0].Sport)
}

func TestSportsTooYoungSkipsAcademies(t *testing.T) {
	h, store, s := newTestHandler(t, canned())
	require.NoError(t, store.ActivateSubscription(context.Background(), testUser, model.PlanBasic))

	drive(h, s, message("/sports"), message("cricket"), message("5"), press("nav:next"), message("Chennai"), press("nav:next"))
	h.Wait()
	assert.NotContains(t, s.last().Text, "MRF Pace Foundation")
}

func TestSavedArtifactDeepLink(t *testing.T) {
	handoff, err := repo.NewHandoffStore(filepath.Join(t.TempDir(), "handoff.db"))
	require.NoError(t, err)
	h, store, s := newTestHandler(t, canned(), WithHandoff(handoff))

	saved, err := store.ToggleSavedArtifact(context.Background(), testUser, model.SavedArtifact{
		ID:    "1700000000000",
		Type:  string(model.KindBusiness),
		Title: "Cloud kitchen",
		Data:  map[string]string{"highlight_1": "low rent", "highlight_2": "delivery apps"},
	})
	require.NoError(t, err)
	require.True(t, saved)

	drive(h, s, message("/saved"))
	assert.Contains(t, callbackData(s.last()), "dl:1700000000000")

	drive(h, s, press("dl:1700000000000"))
	assert.Contains(t, s.last().Text, "Cloud kitchen")

	drive(h, s, press("res:open:0"), press("res:save:0"))
	h.Wait()
	assert.Equal(t, "Removed from saved.", s.lastAnswer(), "a preloaded artifact toggles its stored entry")

	drive(h, s, message("/start "+deepLinkPayload))
	assert.Contains(t, s.last().Text, "Nothing to open")
}

func TestArtifactHighlightsKeepOrder(t *testing.T) {
	a := model.SavedArtifact{Data: map[string]string{
		"highlight_10": "j", "highlight_2": "b", "highlight_1": "a", "roadmap_Year 1": "x",
	}}
	assert.Equal(t, []string{"a", "b", "j"}, artifactHighlights(a))
}

func TestQuizFlow(t *testing.T) {
	h, store, s := newTestHandler(t, canned())
	test, err := store.CreateTest(context.Background(), model.AssignedTest{
		TeacherID: "tg_7",
		Subject:   "Mathematics",
		Topic:     "Sums",
		Questions: []model.QuizQuestion{{Question: "2+2?", Options: []string{"3", "4"}, Answer: "4"}},
	})
	require.NoError(t, err)

	drive(h, s, message("/taketest"), message("WRONG1"))
	assert.Contains(t, s.last().Text, "No test found")

	drive(h, s, message(strings.ToLower(test.Password)))
	assert.Contains(t, s.last().Text, "2+2?")

	drive(h, s, press("opt:0:1"), press("nav:next"))
	h.Wait()
	assert.Contains(t, s.last().Text, "You scored 1 out of 1")

	stored, err := store.FindTestByPassword(context.Background(), test.Password)
	require.NoError(t, err)
	assert.Equal(t, model.TestCompleted, stored.Status)
	require.NotNil(t, stored.Submission)
	assert.Equal(t, "Asha", stored.Submission.StudentName)

	drive(h, s, message("/taketest"), message(test.Password))
	assert.Contains(t, s.last().Text, "already been completed")
}

func TestTeacherCreatesTest(t *testing.T) {
	h, store, s := newTestHandler(t, canned())
	require.NoError(t, store.ActivateSubscription(context.Background(), testUser, model.PlanTeacher))

	drive(h, s,
		message("/createtest"),
		press("opt:0:0"), // Mathematics
		press("opt:1:2"), // class 10
		press("nav:next"),
		message("Addition"),
		message("3"),
		press("nav:next"),
	)
	h.Wait()
	assert.Contains(t, s.last().Text, "Test created with 3 questions")

	drive(h, s, message("/testresult"))
	assert.Contains(t, s.last().Text, "Waiting for a student")
}

func groupMessage(userID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Chat: models.Chat{ID: -1001},
		From: &models.User{ID: userID, FirstName: "Member"},
		Text: text,
	}}
}

func TestGroupMembersKeepSeparateAccounts(t *testing.T) {
	h, store, s := newTestHandler(t, canned())
	require.NoError(t, store.ActivateSubscription(context.Background(), userIDFor(7), model.PlanTeacher))

	drive(h, s, groupMessage(8, "/createtest"))
	assert.Equal(t, int64(-1001), s.last().ChatID)
	assert.Equal(t, []string{"sub:teacher"}, callbackData(s.last()))

	drive(h, s, groupMessage(7, "/createtest"))
	assert.NotContains(t, callbackData(s.last()), "sub:teacher")
	assert.Contains(t, s.last().Text, "Step 1 of 2")

	drive(h, s, groupMessage(8, "/createtest"))
	assert.Equal(t, []string{"sub:teacher"}, callbackData(s.last()), "the group chat does not share the subscriber's plan")
}

type fakeGateway struct {
	mu     sync.Mutex
	orders []model.OrderRequest
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, req)
	return &model.Order{OrderID: "order_1", PaymentSessionID: "session_1"}, nil
}

func TestCheckoutCollectsProfileFirst(t *testing.T) {
	gw := &fakeGateway{}
	h, store, s := newTestHandler(t, canned(), WithPayments(gw, "https://careerbot.example/"))

	drive(h, s, press("sub:basic"))
	assert.Contains(t, s.last().Text, "Profile")

	drive(h, s, message("Asha Rao"), message("asha@example.com"), press("nav:next"), message("9876543210"), press("nav:next"))
	require.Eventually(t, func() bool { return s.sent("costs ₹99") }, time.Second, 10*time.Millisecond)

	pay := s.find("costs ₹99")
	require.NotNil(t, pay)
	assert.Equal(t, []string{"https://careerbot.example/checkout/session_1"}, callbackData(pay))

	require.NoError(t, store.RecordPayment(context.Background(), model.Payment{
		OrderID: "order_1", UserID: testUser, Plan: string(model.PlanBasic), Status: model.PaymentPaid,
	}))
	h.Wait()
	assert.True(t, s.sent("Your Basic plan is active"))

	u, err := store.GetUser(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, u.Allows(model.FeatureSports))
	require.Len(t, gw.orders, 1)
	assert.Equal(t, "9876543210", gw.orders[0].CustomerPhone)
}

func TestSubscribeWithoutGateway(t *testing.T) {
	h, _, s := newTestHandler(t, canned())
	drive(h, s, press("sub:basic"))
	assert.Contains(t, s.last().Text, "not available")
	drive(h, s, press("sub:platinum"))
	assert.Equal(t, "Unknown plan.", s.lastAnswer())
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []model.Mail
}

func (m *fakeMailer) Send(ctx context.Context, mail model.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

func TestConsultationMailsCounsellor(t *testing.T) {
	mailer := &fakeMailer{}
	h, _, s := newTestHandler(t, canned(), WithMailer(mailer, "counsellor@example.com"))
	drive(h, s, careerAnswers...)
	drive(h, s, press("nav:next"))
	h.Wait()
	drive(h, s, press("res:open:0"))
	h.Wait()
	drive(h, s, press("res:consultation:0"))
	h.Wait()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"counsellor@example.com"}, mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Subject, "Pilot")
	assert.True(t, s.sent("A counsellor has your request"))

	// memoized views do not mail twice
	drive(h, s, press("res:back"), press("res:consultation:0"))
	h.Wait()
	assert.Len(t, mailer.sent, 1)
}

type fakeImages struct{}

func (fakeImages) CardImage(ctx context.Context, title string) (string, error) {
	return "https://img.example/" + strings.ReplaceAll(title, " ", "_") + ".jpg", nil
}

func (fakeImages) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	return []byte("jpeg"), "image/jpeg", nil
}

func TestBasicResultSendsImagesFirst(t *testing.T) {
	h, _, s := newTestHandler(t, canned(), WithImages(fakeImages{}))
	drive(h, s, careerAnswers...)
	drive(h, s, press("nav:next"))
	h.Wait()

	require.Len(t, s.photos, 1)
	assert.Equal(t, "Pilot", s.photos[0].Caption)
	assert.Contains(t, s.last().Text, "Pilot")
}

func TestProfilePictureUpload(t *testing.T) {
	h, store, s := newTestHandler(t, canned(), WithImages(fakeImages{}))
	update := message("")
	update.Message.Photo = []models.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	drive(h, s, update)
	assert.Equal(t, "Profile picture updated.", s.last().Text)

	u, err := store.GetUser(context.Background(), testUser)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ProfilePic)
}
