package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"polymer-learn-service/internal/domain"
)

// LearningService contains the student-facing quiz use cases.
type LearningService struct {
	sessions SessionRepository
	lessons  LessonRepository
	attempts AttemptStore
	progress *ProgressAggregator
	identity Identity
	locks    *keyedMutex
	opts     options
}

func NewLearningService(
	sessions SessionRepository,
	lessons LessonRepository,
	attempts AttemptStore,
	progress *ProgressAggregator,
	identity Identity,
	opts ...Option,
) *LearningService {
	return &LearningService{
		sessions: sessions,
		lessons:  lessons,
		attempts: attempts,
		progress: progress,
		identity: identity,
		locks:    newKeyedMutex(),
		opts:     buildOptions(opts),
	}
}

// StartLesson opens a new session and attempt on lessonID for the caller.
func (s *LearningService) StartLesson(ctx context.Context, lessonID string) (Session, error) {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return Session{}, err
	}
	lesson, err := s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return Session{}, err
	}
	attemptID, err := s.newAttempt(ctx, studentID, lesson.ID)
	if err != nil {
		return Session{}, err
	}

	session := StartSession(uuid.NewString(), studentID, attemptID, lesson)
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, err
	}
	s.opts.metrics.SessionStarted()
	s.opts.log.Debug("session started",
		zap.String("session", session.ID),
		zap.String("student", studentID),
		zap.String("lesson", lesson.ID),
	)
	return session, nil
}

// GetSession returns the caller's session.
func (s *LearningService) GetSession(ctx context.Context, sessionID string) (Session, error) {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return Session{}, err
	}
	return s.load(ctx, sessionID, studentID)
}

// SelectAnswer records optionIndex for questionIndex, which must be current.
func (s *LearningService) SelectAnswer(ctx context.Context, sessionID string, questionIndex, optionIndex int) (Session, error) {
	return s.update(ctx, sessionID, func(session Session) (Session, error) {
		return session.Select(questionIndex, optionIndex)
	})
}

// CheckAnswer scores the current question and stores the answer on the attempt.
func (s *LearningService) CheckAnswer(ctx context.Context, sessionID string) (CheckResult, error) {
	var result CheckResult
	_, err := s.update(ctx, sessionID, func(session Session) (Session, error) {
		next, res, err := session.Check()
		if err != nil {
			return session, err
		}
		result = res
		if res.AlreadyChecked {
			return next, nil
		}
		selected := res.Selected
		answer := domain.AttemptAnswer{
			QuestionIndex:  res.QuestionIndex,
			SelectedOption: &selected,
			IsCorrect:      res.IsCorrect,
		}
		if err := s.attempts.SaveAnswer(ctx, session.AttemptID, answer, s.timestamp()); err != nil {
			return session, err
		}
		s.opts.metrics.AnswerChecked(res.IsCorrect)
		return next, nil
	})
	if err != nil {
		return CheckResult{}, err
	}
	return result, nil
}

// Advance moves to the next question; done reports entering review.
func (s *LearningService) Advance(ctx context.Context, sessionID string) (Session, bool, error) {
	var done bool
	session, err := s.update(ctx, sessionID, func(session Session) (Session, error) {
		next, d, err := session.Advance()
		done = d
		return next, err
	})
	if err != nil {
		return Session{}, false, err
	}
	return session, done, nil
}

// GoTo revisits an earlier question.
func (s *LearningService) GoTo(ctx context.Context, sessionID string, questionIndex int) (Session, error) {
	return s.update(ctx, sessionID, func(session Session) (Session, error) {
		return session.GoTo(questionIndex)
	})
}

// Retry restarts a reviewed lesson under a fresh attempt.
func (s *LearningService) Retry(ctx context.Context, sessionID string) (Session, error) {
	return s.update(ctx, sessionID, func(session Session) (Session, error) {
		if session.Phase != PhaseReview {
			return session, domain.ErrWrongPhase
		}
		attemptID, err := s.newAttempt(ctx, session.StudentID, session.Lesson.ID)
		if err != nil {
			return session, err
		}
		s.opts.metrics.SessionStarted()
		return session.Retry(attemptID)
	})
}

// FinishSession finalizes the attempt, folds the result into progress and
// drops the session. On a failed write the session stays in review so the
// caller can finish again.
func (s *LearningService) FinishSession(ctx context.Context, sessionID string) (Completion, error) {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return Completion{}, err
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID, studentID)
	if err != nil {
		return Completion{}, err
	}
	done, outcome, err := session.Finish()
	if err != nil {
		return Completion{}, err
	}
	if err := s.attempts.FinalizeAttempt(ctx, session.AttemptID, outcome.FinalScore, s.timestamp()); err != nil {
		return Completion{}, err
	}
	completion, err := s.progress.Record(ctx, studentID, s.userName(ctx), outcome)
	if err != nil {
		s.opts.log.Warn("progress write failed; session kept for retry",
			zap.String("session", sessionID), zap.Error(err))
		return Completion{}, err
	}
	// A completed record left behind by a failed delete rejects a second finish.
	if err := s.sessions.Save(ctx, done); err != nil {
		s.opts.log.Warn("mark session completed", zap.String("session", sessionID), zap.Error(err))
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.opts.log.Warn("drop finished session", zap.String("session", sessionID), zap.Error(err))
	}
	return completion, nil
}

// Discard leaves review without saving.
func (s *LearningService) Discard(ctx context.Context, sessionID string) error {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID, studentID)
	if err != nil {
		return err
	}
	if _, err := session.Discard(); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Exit abandons the session in any phase. Unknown sessions are ignored.
func (s *LearningService) Exit(ctx context.Context, sessionID string) error {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if _, err := s.load(ctx, sessionID, studentID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}

// GetProgress returns the progress record of studentID.
func (s *LearningService) GetProgress(ctx context.Context, studentID string) (domain.Progress, error) {
	return s.progress.Get(ctx, studentID)
}

// MyProgress returns the caller's progress record.
func (s *LearningService) MyProgress(ctx context.Context) (domain.Progress, error) {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return domain.Progress{}, err
	}
	return s.progress.Get(ctx, studentID)
}

// ResetProgress clears the caller's progress. Confirmation is the caller's job.
func (s *LearningService) ResetProgress(ctx context.Context) error {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	return s.progress.Reset(ctx, studentID)
}

func (s *LearningService) update(ctx context.Context, sessionID string, fn func(Session) (Session, error)) (Session, error) {
	studentID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return Session{}, err
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID, studentID)
	if err != nil {
		return Session{}, err
	}
	next, err := fn(session)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Save(ctx, next); err != nil {
		return Session{}, err
	}
	return next, nil
}

func (s *LearningService) load(ctx context.Context, sessionID, studentID string) (Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.StudentID != studentID {
		return Session{}, domain.ErrForbidden
	}
	return session, nil
}

func (s *LearningService) newAttempt(ctx context.Context, studentID, lessonID string) (string, error) {
	now := s.timestamp()
	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		StudentID: studentID,
		LessonID:  lessonID,
		StartedAt: now,
		UpdatedAt: now,
		Answers:   []domain.AttemptAnswer{},
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return "", err
	}
	return attempt.ID, nil
}

func (s *LearningService) userName(ctx context.Context) string {
	if names, ok := s.identity.(NameResolver); ok {
		return names.CurrentUserName(ctx)
	}
	return ""
}

func (s *LearningService) timestamp() string {
	return domain.Timestamp(s.opts.now())
}
