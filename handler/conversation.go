package handler

import (
	"strconv"
	"sync"

	"CareerBot/model"
	"CareerBot/questionnaire"
)

// Conversation is the per-chat state: at most one live questionnaire session
// plus what the current flow needs around it.
type Conversation struct {
	mu sync.Mutex

	ChatID      int64
	UserID      string
	DisplayName string

	session  *questionnaire.Session
	feature  model.Feature
	advanced bool

	// editing is the typed field chosen with an edit button.
	editing string
	options map[string][]string

	awaitingPassword bool
	test             *model.AssignedTest
	pendingPlan      model.SubscriptionModel

	images     *questionnaire.ImageBoard
	academies  []model.SavedAcademy
	savedIDs   map[string]bool
	academySet map[string]bool
}

func newConversation(chatID, telegramUserID int64) *Conversation {
	return &Conversation{
		ChatID:     chatID,
		UserID:     userIDFor(telegramUserID),
		savedIDs:   make(map[string]bool),
		academySet: make(map[string]bool),
	}
}

func userIDFor(telegramID int64) string {
	return "tg_" + strconv.FormatInt(telegramID, 10)
}

// open replaces the active session. The old one is reset so anything it still
// has in flight is dropped when it lands.
func (c *Conversation) open(flow *questionnaire.Flow, feature model.Feature) *questionnaire.Session {
	if c.session != nil {
		c.session.Reset()
	}
	c.session = questionnaire.NewSession(flow)
	c.feature = feature
	c.editing = ""
	c.options = make(map[string][]string)
	c.awaitingPassword = false
	c.images = questionnaire.NewImageBoard()
	c.academies = nil
	return c.session
}

func (c *Conversation) close() {
	if c.session != nil {
		c.session.Reset()
	}
	c.session = nil
	c.test = nil
	c.awaitingPassword = false
	c.editing = ""
}

func (c *Conversation) optionsFor(f questionnaire.Field) []string {
	if len(f.Options) > 0 {
		return f.Options
	}
	return c.options[f.Name]
}

// convKey separates members of a group chat; in a private chat both ids match.
type convKey struct {
	chat, user int64
}

type conversations struct {
	mu   sync.Mutex
	byID map[convKey]*Conversation
}

// get returns the conversation the Telegram user is having in chatID. The
// account is always keyed by the sender, never by the chat.
func (cs *conversations) get(chatID, telegramUserID int64) *Conversation {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.byID == nil {
		cs.byID = make(map[convKey]*Conversation)
	}
	key := convKey{chatID, telegramUserID}
	c, ok := cs.byID[key]
	if !ok {
		c = newConversation(chatID, telegramUserID)
		cs.byID[key] = c
	}
	return c
}
