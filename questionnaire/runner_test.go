package questionnaire

import (
	"context"
	"errors"
	"testing"
	"time"

	"CareerBot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizFixture() *model.AssignedTest {
	return &model.AssignedTest{
		Subject: "Mathematics",
		Topic:   "Basics",
		Questions: []model.QuizQuestion{
			{Question: "2+2?", Options: []string{"3", "4"}, Answer: "4"},
			{Question: "Capital of India?", Options: []string{"Delhi", "Mumbai"}, Answer: "Delhi"},
		},
	}
}

func submittingProfile(t *testing.T) *Session {
	t.Helper()
	s := NewSession(Profile())
	s.SetInput(FieldName, "Ravi")
	s.SetInput(FieldEmail, "ravi@example.com")
	require.True(t, s.Next())
	s.SetInput(FieldPhone, "9876543210")
	require.True(t, s.Next())
	return s
}

func sampleResult() model.RemoteResult {
	return model.RemoteResult{
		Kind: model.KindCareer,
		Items: []model.Recommendation{
			{Title: "Data Scientist", Description: "Works with data", Highlights: []string{"Statistics"}},
			{Title: "Architect", Description: "Designs buildings"},
		},
	}
}

func TestSubmitSuccess(t *testing.T) {
	s := submittingProfile(t)
	r := NewRunner(0)

	out := r.Submit(context.Background(), s, "career", "Thinking...", func(ctx context.Context) (model.RemoteResult, error) {
		assert.True(t, s.Snapshot().Loading)
		assert.Equal(t, "Thinking...", s.Snapshot().Status)
		return sampleResult(), nil
	})

	require.NoError(t, out.Err)
	require.NotNil(t, out.Result)
	snap := s.Snapshot()
	assert.Equal(t, PhaseResult, snap.Phase)
	assert.False(t, snap.Loading)
	assert.False(t, snap.Result.ReceivedAt.IsZero())
	assert.NotNil(t, s.Explorer())
}

func TestSubmitFailureReturnsToLastStep(t *testing.T) {
	s := submittingProfile(t)
	r := NewRunner(0)

	out := r.Submit(context.Background(), s, "career", "", func(ctx context.Context) (model.RemoteResult, error) {
		return model.RemoteResult{}, errors.New("boom")
	})

	assert.Error(t, out.Err)
	assert.Equal(t, DefaultFallbackMessage, out.Alert)
	snap := s.Snapshot()
	assert.Equal(t, PhaseCollecting, snap.Phase)
	assert.Equal(t, 1, snap.Step)
	assert.False(t, snap.Loading)
	assert.Equal(t, DefaultFallbackMessage, snap.Alert)
	assert.Equal(t, "9876543210", snap.Answers.Text(FieldPhone))
}

func TestSubmitEmptyResultIsFailure(t *testing.T) {
	s := submittingProfile(t)
	out := NewRunner(0).Submit(context.Background(), s, "career", "", func(ctx context.Context) (model.RemoteResult, error) {
		return model.RemoteResult{}, nil
	})
	assert.ErrorIs(t, out.Err, model.ErrEmptyResult)
	assert.Equal(t, PhaseCollecting, s.Snapshot().Phase)
}

func TestSubmitResultAfterResetIsDropped(t *testing.T) {
	s := submittingProfile(t)
	r := NewRunner(0)

	release := make(chan struct{})
	done := make(chan Outcome)
	go func() {
		done <- r.Submit(context.Background(), s, "career", "", func(ctx context.Context) (model.RemoteResult, error) {
			<-release
			return sampleResult(), nil
		})
	}()

	require.Eventually(t, func() bool { return s.Snapshot().Loading }, time.Second, time.Millisecond)
	s.Reset()
	s.SetInput(FieldName, "After reset")
	before := s.Snapshot()
	close(release)

	out := <-done
	assert.True(t, out.Stale)
	after := s.Snapshot()
	assert.Equal(t, before, after)
	assert.Nil(t, after.Result)
	assert.Equal(t, PhaseCollecting, after.Phase)
}

func TestSubmitFailureAfterResetIsDropped(t *testing.T) {
	s := submittingProfile(t)
	r := NewRunner(0)

	release := make(chan struct{})
	done := make(chan Outcome)
	go func() {
		done <- r.Submit(context.Background(), s, "career", "", func(ctx context.Context) (model.RemoteResult, error) {
			<-release
			return model.RemoteResult{}, errors.New("late")
		})
	}()

	require.Eventually(t, func() bool { return s.Snapshot().Loading }, time.Second, time.Millisecond)
	s.Reset()
	close(release)

	out := <-done
	assert.True(t, out.Stale)
	assert.Empty(t, s.Snapshot().Alert)
}

func TestSubmitOutsideSubmittingIsStale(t *testing.T) {
	s := NewSession(Profile())
	called := false
	out := NewRunner(0).Submit(context.Background(), s, "career", "", func(ctx context.Context) (model.RemoteResult, error) {
		called = true
		return sampleResult(), nil
	})
	assert.True(t, out.Stale)
	assert.False(t, called)
}

func TestRunnerTimeout(t *testing.T) {
	s := submittingProfile(t)
	r := NewRunner(10 * time.Millisecond)
	out := r.Submit(context.Background(), s, "career", "", func(ctx context.Context) (model.RemoteResult, error) {
		<-ctx.Done()
		return model.RemoteResult{}, ctx.Err()
	})
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Equal(t, PhaseCollecting, s.Snapshot().Phase)
}

func TestChangePathFromResult(t *testing.T) {
	s := NewSession(CareerPath())
	require.True(t, s.Preload(sampleResult()))
	gen := s.Snapshot().Generation

	require.True(t, s.ChangePath())
	snap := s.Snapshot()
	assert.Equal(t, PhaseCollecting, snap.Phase)
	assert.Equal(t, 3, snap.Step)
	assert.Greater(t, snap.Generation, gen)
	assert.Nil(t, s.Explorer())

	assert.False(t, NewSession(ChildAbility()).ChangePath())
}
