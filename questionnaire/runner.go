package questionnaire

import (
	"context"
	"time"

	"CareerBot/model"

	"github.com/rs/zerolog/log"
)

// DefaultFallbackMessage is shown whenever an external call fails.
const DefaultFallbackMessage = "Failed to generate recommendations. Please try again."

// Task produces the RemoteResult of a submission.
type Task func(ctx context.Context) (model.RemoteResult, error)

// DocumentTask produces the payload of an explorer sub-state.
type DocumentTask func(ctx context.Context) (model.Document, error)

// Outcome reports how a runner call ended.
type Outcome struct {
	TaskID   string
	Result   *model.RemoteResult
	Document *model.Document
	Err      error
	Alert    string
	// Stale is set when the session moved on (reset, change path) before the call resolved.
	Stale  bool
	Cached bool
}

// Runner wraps external calls in loading transitions. It never retries.
type Runner struct {
	// Timeout bounds each call; zero leaves calls unbounded.
	Timeout         time.Duration
	FallbackMessage string
}

func NewRunner(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout, FallbackMessage: DefaultFallbackMessage}
}

func (r *Runner) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout > 0 {
		return context.WithTimeout(ctx, r.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) fallback() string {
	if r.FallbackMessage == "" {
		return DefaultFallbackMessage
	}
	return r.FallbackMessage
}

// Submit runs task for a session waiting in the submitting phase. Success moves
// the session to the result view; failure returns it to the last input step with
// the fallback alert. A result arriving after Reset is discarded untouched.
func (r *Runner) Submit(ctx context.Context, s *Session, taskID, status string, task Task) Outcome {
	t, ok := s.begin(taskID, status, PhaseSubmitting)
	if !ok {
		log.Warn().Str("task", taskID).Msg("submit requested outside submitting phase")
		return Outcome{TaskID: taskID, Stale: true}
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()
	res, err := task(ctx)
	if err == nil && res.Empty() {
		err = model.ErrEmptyResult
	}

	if err != nil {
		alert := r.fallback()
		applied := s.settle(t, func() {
			s.fire(evReject)
			s.alert = alert
		})
		if !applied {
			log.Debug().Str("task", taskID).Err(err).Msg("dropping stale failure")
			return Outcome{TaskID: taskID, Stale: true}
		}
		log.Error().Str("task", taskID).Err(err).Msg("task failed")
		return Outcome{TaskID: taskID, Err: err, Alert: alert}
	}

	if res.ReceivedAt.IsZero() {
		res.ReceivedAt = time.Now()
	}
	applied := s.settle(t, func() {
		s.fire(evResolve)
		s.result = &res
		s.explorer = newExplorer(s)
	})
	if !applied {
		log.Debug().Str("task", taskID).Msg("dropping stale result")
		return Outcome{TaskID: taskID, Stale: true}
	}
	log.Info().Str("task", taskID).Int("items", len(res.Items)).Msg("task resolved")
	return Outcome{TaskID: taskID, Result: &res}
}

// Drill enters an explorer sub-state for item. The first entry runs task; later
// entries are served from the explorer memo. On failure the explorer stays where
// it was.
func (r *Runner) Drill(ctx context.Context, s *Session, target View, item int, task DocumentTask) Outcome {
	taskID := string(target)
	e := s.Explorer()
	if e == nil {
		return Outcome{TaskID: taskID, Stale: true}
	}
	if doc, ok := e.enterCached(target, item); ok {
		return Outcome{TaskID: taskID, Document: &doc, Cached: true}
	}
	if !e.canEnter(target, item) {
		return Outcome{TaskID: taskID, Err: ErrInvalidView}
	}

	t, ok := s.begin(taskID, "Loading "+target.Label()+"...", PhaseResult)
	if !ok {
		return Outcome{TaskID: taskID, Stale: true}
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()
	doc, err := task(ctx)
	if err == nil && doc.Title == "" && len(doc.Sections) == 0 {
		err = model.ErrEmptyResult
	}

	if err != nil {
		alert := r.fallback()
		if !s.settle(t, func() { s.alert = alert }) {
			return Outcome{TaskID: taskID, Stale: true}
		}
		log.Error().Str("task", taskID).Int("item", item).Err(err).Msg("drill failed")
		return Outcome{TaskID: taskID, Err: err, Alert: alert}
	}

	applied := s.settle(t, func() {
		if s.explorer == e {
			e.store(target, item, doc)
		}
	})
	if !applied {
		return Outcome{TaskID: taskID, Stale: true}
	}
	return Outcome{TaskID: taskID, Document: &doc}
}
