package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
	"polymer-learn-service/internal/infra/memory"
)

const introLesson = "default-introduction-to-polymers"

func playLesson(t *testing.T, ctx context.Context, svc *app.LearningService, sessionID string, options ...int) app.Session {
	t.Helper()
	var (
		session app.Session
		err     error
	)
	for i, opt := range options {
		if _, err = svc.SelectAnswer(ctx, sessionID, i, opt); err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if _, err = svc.CheckAnswer(ctx, sessionID); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if session, _, err = svc.Advance(ctx, sessionID); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	return session
}

func TestLearningServiceCompletesLesson(t *testing.T) {
	s := seededStack()
	ctx := as("u1")

	session, err := s.learning.StartLesson(ctx, introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	session = playLesson(t, ctx, s.learning, session.ID, 1, 0, 0)
	if session.Phase != app.PhaseReview || session.Score != 2 {
		t.Fatalf("expected review with score 2, got %s / %d", session.Phase, session.Score)
	}

	completion, err := s.learning.FinishSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if completion.EarnedXP != 33 || completion.NewXP != 33 || completion.NewStreak != 1 {
		t.Fatalf("unexpected completion %+v", completion)
	}
	if completion.Progress.UserName != "Name of u1" {
		t.Fatalf("display name not recorded: %q", completion.Progress.UserName)
	}
	if _, err := s.learning.GetSession(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("finished session still present: %v", err)
	}

	attempts, err := s.store.ListAttemptsByStudent(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected one attempt, got %d", len(attempts))
	}
	at := attempts[0]
	if at.Score == nil || *at.Score != 2 || at.CompletedAt == "" || len(at.Answers) != 3 {
		t.Fatalf("attempt not finalized: %+v", at)
	}
}

func TestLearningServiceRetryStartsNewAttempt(t *testing.T) {
	s := seededStack()
	ctx := as("u1")

	session, err := s.learning.StartLesson(ctx, introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	playLesson(t, ctx, s.learning, session.ID, 0, 0, 0)
	retried, err := s.learning.Retry(ctx, session.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.AttemptID == session.AttemptID {
		t.Fatalf("retry reused attempt %s", retried.AttemptID)
	}
	playLesson(t, ctx, s.learning, session.ID, 1, 0, 2)
	completion, err := s.learning.FinishSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if completion.EarnedXP != 50 {
		t.Fatalf("expected 50 xp, got %d", completion.EarnedXP)
	}

	attempts, _ := s.store.ListAttemptsByStudent(context.Background(), "u1")
	if len(attempts) != 2 {
		t.Fatalf("expected two attempts, got %d", len(attempts))
	}
}

func TestLearningServiceSessionOwnership(t *testing.T) {
	s := seededStack()
	session, err := s.learning.StartLesson(as("u1"), introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.learning.GetSession(as("u2"), session.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := s.learning.StartLesson(context.Background(), introLesson); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := s.learning.StartLesson(as("u1"), "missing"); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected lesson not found, got %v", err)
	}
}

func TestLearningServiceCheckPersistsAnswerOnce(t *testing.T) {
	s := seededStack()
	ctx := as("u1")
	session, err := s.learning.StartLesson(ctx, introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.learning.SelectAnswer(ctx, session.ID, 0, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	first, err := s.learning.CheckAnswer(ctx, session.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	second, err := s.learning.CheckAnswer(ctx, session.ID)
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if !first.IsCorrect || !second.AlreadyChecked || second.Score != 1 {
		t.Fatalf("unexpected check results %+v %+v", first, second)
	}
	attempt, err := s.store.GetAttempt(context.Background(), session.AttemptID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if len(attempt.Answers) != 1 || !attempt.Answers[0].IsCorrect {
		t.Fatalf("unexpected stored answers %+v", attempt.Answers)
	}
}

func TestLearningServiceKeepsSessionWhenProgressWriteFails(t *testing.T) {
	s := seededStack()
	broken := newTestStack(s.store, failingProgress{ProgressStore: s.store})
	ctx := as("u1")

	session, err := broken.learning.StartLesson(ctx, introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	playLesson(t, ctx, broken.learning, session.ID, 1, 0, 2)
	if _, err := broken.learning.FinishSession(ctx, session.ID); err == nil {
		t.Fatalf("expected finish to fail")
	}
	kept, err := broken.learning.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("session dropped after failed write: %v", err)
	}
	if kept.Phase != app.PhaseReview || kept.Score != 3 {
		t.Fatalf("session changed after failed write: %s / %d", kept.Phase, kept.Score)
	}
	if _, err := s.store.GetProgress(context.Background(), "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("progress written despite failure: %v", err)
	}
}

func TestLearningServiceDiscardExitAndReset(t *testing.T) {
	s := seededStack()
	ctx := as("u1")

	session, err := s.learning.StartLesson(ctx, introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.learning.Discard(ctx, session.ID); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("discard mid-quiz: %v", err)
	}
	playLesson(t, ctx, s.learning, session.ID, 1, 0, 2)
	if err := s.learning.Discard(ctx, session.ID); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := s.learning.MyProgress(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("discard wrote progress: %v", err)
	}
	if err := s.learning.Exit(ctx, session.ID); err != nil {
		t.Fatalf("exit of a gone session: %v", err)
	}

	session, _ = s.learning.StartLesson(ctx, introLesson)
	playLesson(t, ctx, s.learning, session.ID, 1, 0, 2)
	if _, err := s.learning.FinishSession(ctx, session.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.learning.ResetProgress(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	p, err := s.learning.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p.XP != 0 || p.Streak != 0 || len(p.CompletedLessonIDs) != 0 {
		t.Fatalf("progress not reset: %+v", p)
	}
	if s.sessions.Len() != 0 {
		t.Fatalf("sessions leaked: %d", s.sessions.Len())
	}
}

// stuckSessions stores sessions but never manages to delete them.
type stuckSessions struct {
	*memory.SessionStore
}

func (stuckSessions) Delete(context.Context, string) error {
	return errors.New("redis: i/o timeout")
}

func TestLearningServiceFinishCountsOnceWhenDeleteFails(t *testing.T) {
	s := seededStack()
	sessions := stuckSessions{SessionStore: memory.NewSessionStore(time.Hour)}
	progress := app.NewProgressAggregator(s.store)
	learning := app.NewLearningService(sessions, s.store, s.store, progress, testIdentity{})
	ctx := as("u1")

	session, err := learning.StartLesson(ctx, introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	playLesson(t, ctx, learning, session.ID, 1, 0, 2)
	first, err := learning.FinishSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if first.NewXP != 50 || first.NewStreak != 1 {
		t.Fatalf("unexpected completion %+v", first)
	}

	if _, err := learning.FinishSession(ctx, session.ID); !errors.Is(err, domain.ErrWrongPhase) {
		t.Fatalf("expected second finish to be rejected, got %v", err)
	}
	p, err := learning.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p.XP != 50 || p.Streak != 1 {
		t.Fatalf("progress counted twice: %+v", p)
	}
}

func TestLearningServiceProgressReadsAreStable(t *testing.T) {
	s := seededStack()
	ctx := as("u1")

	session, err := s.learning.StartLesson(ctx, introLesson)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	playLesson(t, ctx, s.learning, session.ID, 1, 0, 2)
	if _, err := s.learning.FinishSession(ctx, session.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}

	first, err := s.learning.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := s.learning.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reads differ: %+v vs %+v", first, second)
	}
}
