package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CareerBot/model"
	"CareerBot/questionnaire"

	"github.com/rs/zerolog/log"
)

// openTest starts a quiz from a teacher's password.
func (h *CareerBotHandler) openTest(ctx context.Context, s Sender, conv *Conversation, password string) {
	password = strings.ToUpper(strings.TrimSpace(password))
	if len(password) != model.PasswordLength {
		h.send(ctx, s, conv.ChatID, fmt.Sprintf("Test passwords are %d characters long. Please send it again.", model.PasswordLength), nil)
		return
	}
	test, err := h.FirebaseConnector.FindTestByPassword(ctx, password)
	if errors.Is(err, model.ErrTestDoesNotExist) {
		h.send(ctx, s, conv.ChatID, "No test found with that password. Check it and send it again.", nil)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("error finding test")
		h.send(ctx, s, conv.ChatID, "Error loading the test. Please try again later.", nil)
		return
	}
	if test.Status == model.TestCompleted {
		conv.awaitingPassword = false
		h.send(ctx, s, conv.ChatID, "This test has already been completed.", nil)
		return
	}
	conv.open(questionnaire.QuizFlow(test), "")
	conv.test = test
	h.renderCurrent(ctx, s, conv)
}

// showTestResults lists the teacher's tests with any submissions.
func (h *CareerBotHandler) showTestResults(ctx context.Context, s Sender, conv *Conversation) {
	tests, err := h.FirebaseConnector.TestsByTeacher(ctx, conv.UserID)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error listing tests")
		h.send(ctx, s, conv.ChatID, "Error retrieving tests. Please try again later.", nil)
		return
	}
	if len(tests) == 0 {
		h.send(ctx, s, conv.ChatID, "You haven't created any tests yet. Use /createtest.", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("Your tests:\n")
	for _, t := range tests {
		fmt.Fprintf(&sb, "\n%s · %s (class %s) · password %s\n", t.Subject, t.Topic, t.ClassLevel, t.Password)
		if t.Status != model.TestCompleted || t.Submission == nil {
			sb.WriteString("  Waiting for a student\n")
			continue
		}
		name := t.Submission.StudentName
		if name == "" {
			name = t.Submission.StudentID
		}
		fmt.Fprintf(&sb, "  %s scored %d/%d on %s\n", name, t.Submission.Score, len(t.Questions), t.Submission.CompletedAt.Format("02 Jan 2006"))
	}
	h.send(ctx, s, conv.ChatID, strings.TrimRight(sb.String(), "\n"), nil)
}
