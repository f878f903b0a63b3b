package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"CareerBot/model"
	"CareerBot/questionnaire"
	"CareerBot/repo"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// Sender is the part of *bot.Bot the handler talks through.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// ImageSource resolves card images and downloads uploaded photos.
type ImageSource interface {
	CardImage(ctx context.Context, title string) (string, error)
	Download(ctx context.Context, fileID string) ([]byte, string, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error)
}

type MailSender interface {
	Send(ctx context.Context, mail model.Mail) error
}

// Handoff passes one payload per owner between views; Take consumes it.
type Handoff interface {
	Put(ctx context.Context, owner string, v interface{}) error
	Take(ctx context.Context, owner string, v interface{}) error
}

const defaultPaymentWatch = 30 * time.Minute

type CareerBotHandler struct {
	FirebaseConnector repo.FirestoreConnector
	Advisor           *repo.Advisor

	images         ImageSource
	payments       PaymentGateway
	mailer         MailSender
	handoff        Handoff
	runner         *questionnaire.Runner
	publicBaseURL  string
	counsellorMail string
	paymentWatch   time.Duration

	convs conversations
	tasks sync.WaitGroup
}

// Option configures optional collaborators of the handler.
type Option func(*CareerBotHandler)

func WithImages(images ImageSource) Option {
	return func(h *CareerBotHandler) { h.images = images }
}

func WithPayments(p PaymentGateway, publicBaseURL string) Option {
	return func(h *CareerBotHandler) {
		h.payments = p
		h.publicBaseURL = strings.TrimRight(publicBaseURL, "/")
	}
}

func WithMailer(m MailSender, counsellor string) Option {
	return func(h *CareerBotHandler) {
		h.mailer = m
		h.counsellorMail = counsellor
	}
}

func WithHandoff(store Handoff) Option {
	return func(h *CareerBotHandler) { h.handoff = store }
}

func WithRunner(r *questionnaire.Runner) Option {
	return func(h *CareerBotHandler) { h.runner = r }
}

func WithPaymentWatch(d time.Duration) Option {
	return func(h *CareerBotHandler) { h.paymentWatch = d }
}

func NewCareerBotHandler(
	FirebaseConnector repo.FirestoreConnector,
	advisor *repo.Advisor,
	opts ...Option,
) *CareerBotHandler {
	h := &CareerBotHandler{
		FirebaseConnector: FirebaseConnector,
		Advisor:           advisor,
		runner:            questionnaire.NewRunner(0),
		paymentWatch:      defaultPaymentWatch,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Wait blocks until background generation and payment watches finish.
func (h *CareerBotHandler) Wait() {
	h.tasks.Wait()
}

func (h *CareerBotHandler) goTask(fn func()) {
	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		fn()
	}()
}

// Handler is registered as the bot's default handler.
func (h *CareerBotHandler) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.Handle(ctx, b, update)
}

func (h *CareerBotHandler) Handle(ctx context.Context, s Sender, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, s, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, s, update.Message)
	}
}

func (h *CareerBotHandler) send(ctx context.Context, s Sender, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := s.SendMessage(ctx, params); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("error sending message")
	}
}

const helpText = `Here is what I can do:
/career – find career paths that fit you
/business – business ideas for your budget (Student plan)
/child – discover your child's natural abilities (Parent plan)
/sports – check sports eligibility and find academies
/createtest – create a class test (Teacher plan)
/taketest – take a test your teacher shared
/testresult – see results of tests you created
/profile – update your name, email and phone
/saved – open what you saved
/subscribe – see plans
/reset – start over`

func (h *CareerBotHandler) handleMessage(ctx context.Context, s Sender, msg *models.Message) {
	if msg.From == nil {
		return
	}
	conv := h.convs.get(msg.Chat.ID, msg.From.ID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.DisplayName = displayName(msg.From)
	log.Debug().Int64("chat", msg.Chat.ID).Str("text", msg.Text).Msg("message")

	if len(msg.Photo) > 0 {
		h.handlePhoto(ctx, s, conv, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, s, conv, msg.From, text)
		return
	}

	switch {
	case conv.awaitingPassword:
		h.openTest(ctx, s, conv, text)
	case conv.session != nil:
		h.handleInput(ctx, s, conv, text)
	default:
		h.send(ctx, s, conv.ChatID, "I didn't understand that. Use /start or /help.", nil)
	}
}

func (h *CareerBotHandler) handleCommand(ctx context.Context, s Sender, conv *Conversation, from *models.User, text string) {
	cmd, arg, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}

	switch cmd {
	case "/start":
		if strings.TrimSpace(arg) == deepLinkPayload {
			h.openHandoff(ctx, s, conv)
			return
		}
		h.send(ctx, s, conv.ChatID, "Hey "+displayName(from)+"! I'm CareerBot, your career and education counsellor.\n\n"+helpText, nil)
	case "/help":
		h.send(ctx, s, conv.ChatID, helpText, nil)
	case "/reset":
		conv.close()
		h.send(ctx, s, conv.ChatID, "All cleared. Use /help to pick something new.", nil)
	case "/saved":
		h.showDashboard(ctx, s, conv)
	case "/subscribe":
		h.showPlans(ctx, s, conv)
	case "/taketest":
		conv.close()
		conv.awaitingPassword = true
		h.send(ctx, s, conv.ChatID, "Please send the 6 character test password your teacher gave you.", nil)
	case "/testresult":
		h.showTestResults(ctx, s, conv)
	case "/profile":
		h.startProfile(ctx, s, conv)
	default:
		entry, ok := commandFlows[cmd]
		if !ok {
			h.send(ctx, s, conv.ChatID, "I didn't understand that command. Use /start or /help.", nil)
			return
		}
		h.startFlow(ctx, s, conv, entry)
	}
}

// handleInput feeds typed text into the field awaiting input on the current step.
func (h *CareerBotHandler) handleInput(ctx context.Context, s Sender, conv *Conversation, text string) {
	sess := conv.session
	snap := sess.Snapshot()
	if snap.Phase != questionnaire.PhaseCollecting {
		h.send(ctx, s, conv.ChatID, "Please use the buttons, or /reset to start over.", nil)
		return
	}
	f, ok := inputField(snap, conv.optionsFor, conv.editing)
	if !ok {
		h.send(ctx, s, conv.ChatID, "Please pick from the buttons above.", nil)
		return
	}
	sess.SetInput(f.Name, text)
	conv.editing = ""
	h.renderCurrent(ctx, s, conv)
}

func (h *CareerBotHandler) handlePhoto(ctx context.Context, s Sender, conv *Conversation, msg *models.Message) {
	if h.images == nil {
		h.send(ctx, s, conv.ChatID, "Profile pictures are not available right now.", nil)
		return
	}
	largest := msg.Photo[len(msg.Photo)-1]
	data, contentType, err := h.images.Download(ctx, largest.FileID)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error downloading photo")
		h.send(ctx, s, conv.ChatID, "I couldn't read that picture. Please try again.", nil)
		return
	}
	if _, err := h.FirebaseConnector.SetProfilePicture(ctx, conv.UserID, data, contentType); err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error saving profile picture")
		h.send(ctx, s, conv.ChatID, "Error saving your profile picture. Please try again.", nil)
		return
	}
	h.send(ctx, s, conv.ChatID, "Profile picture updated.", nil)
}

func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return u.Username
}

// loadUser returns the stored user, or an empty one for first-time users.
func (h *CareerBotHandler) loadUser(ctx context.Context, conv *Conversation) (*model.User, error) {
	u, err := h.FirebaseConnector.GetUser(ctx, conv.UserID)
	if errors.Is(err, model.ErrUserDoesNotExist) {
		return &model.User{ID: conv.UserID}, nil
	}
	return u, err
}
