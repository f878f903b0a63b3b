package handler

import (
	"context"
	"errors"
	"sort"
	"strings"

	"CareerBot/model"

	"github.com/rs/zerolog/log"
)

// deepLinkPayload is the /start payload that opens a pending hand-off, as in
// https://t.me/<bot>?start=open.
const deepLinkPayload = "open"

func (h *CareerBotHandler) showDashboard(ctx context.Context, s Sender, conv *Conversation) {
	u, err := h.loadUser(ctx, conv)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error loading user")
		h.send(ctx, s, conv.ChatID, "Error retrieving your saved items. Please try again later.", nil)
		return
	}
	text, kb := renderDashboard(u)
	h.send(ctx, s, conv.ChatID, text, kb)
}

// openSaved hands a saved artifact over to its result view.
func (h *CareerBotHandler) openSaved(ctx context.Context, s Sender, conv *Conversation, id string) {
	u, err := h.loadUser(ctx, conv)
	if err != nil {
		h.send(ctx, s, conv.ChatID, "Error retrieving your saved items. Please try again later.", nil)
		return
	}
	var found *model.SavedArtifact
	for i := range u.SavedBusinessIdeas {
		if u.SavedBusinessIdeas[i].ID == id {
			found = &u.SavedBusinessIdeas[i]
			break
		}
	}
	if found == nil {
		h.send(ctx, s, conv.ChatID, "That item is no longer saved.", nil)
		return
	}
	if h.handoff == nil {
		h.showArtifact(ctx, s, conv, *found)
		return
	}
	if err := h.handoff.Put(ctx, conv.UserID, found); err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error writing hand-off")
		h.send(ctx, s, conv.ChatID, "Could not open that item. Please try again.", nil)
		return
	}
	h.openHandoff(ctx, s, conv)
}

// openHandoff consumes the pending hand-off of the user and shows it.
func (h *CareerBotHandler) openHandoff(ctx context.Context, s Sender, conv *Conversation) {
	if h.handoff == nil {
		h.send(ctx, s, conv.ChatID, "Nothing to open.", nil)
		return
	}
	var a model.SavedArtifact
	err := h.handoff.Take(ctx, conv.UserID, &a)
	if errors.Is(err, model.ErrHandoffEmpty) {
		h.send(ctx, s, conv.ChatID, "Nothing to open. Use /saved to browse your items.", nil)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error reading hand-off")
		h.send(ctx, s, conv.ChatID, "Could not open that item. Please try again.", nil)
		return
	}
	h.showArtifact(ctx, s, conv, a)
}

// showArtifact opens a saved artifact as a one-item result.
func (h *CareerBotHandler) showArtifact(ctx context.Context, s Sender, conv *Conversation, a model.SavedArtifact) {
	entry, ok := flowForKind(model.ResultKind(a.Type))
	if !ok {
		h.send(ctx, s, conv.ChatID, "I can't open this kind of item here.", nil)
		return
	}
	conv.close()
	sess := conv.open(entry.build(), entry.feature)
	rec := model.Recommendation{Title: a.Title, Description: a.Description, Highlights: artifactHighlights(a)}
	sess.Preload(model.RemoteResult{Kind: model.ResultKind(a.Type), Items: []model.Recommendation{rec}}, a)
	conv.savedIDs[a.ID] = true
	h.renderCurrent(ctx, s, conv)
}

func artifactHighlights(a model.SavedArtifact) []string {
	var keys []string
	for k := range a.Data {
		if strings.HasPrefix(k, "highlight_") {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.Data[k])
	}
	return out
}
