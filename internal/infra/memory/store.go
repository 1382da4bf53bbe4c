package memory

import (
	"context"
	"sort"
	"sync"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

var _ app.ContentStore = (*Store)(nil)

// Store keeps modules, lessons, attempts and progress in process memory.
// Records are validated on write and copied on read so callers never share
// slices with the store.
type Store struct {
	mu       sync.RWMutex
	modules  map[string]domain.Module
	lessons  map[string]domain.Lesson
	attempts map[string]domain.Attempt
	progress map[string]domain.Progress
}

func NewStore() *Store {
	return &Store{
		modules:  make(map[string]domain.Module),
		lessons:  make(map[string]domain.Lesson),
		attempts: make(map[string]domain.Attempt),
		progress: make(map[string]domain.Progress),
	}
}

func (s *Store) GetModule(_ context.Context, key string) (domain.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[key]
	if !ok {
		return domain.Module{}, domain.ErrModuleNotFound
	}
	return m, nil
}

func (s *Store) ListModules(_ context.Context) ([]domain.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Module, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) InsertModule(_ context.Context, module domain.Module) error {
	if err := module.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[module.Key]; ok {
		return domain.ErrModuleExists
	}
	s.modules[module.Key] = module
	return nil
}

func (s *Store) ReplaceModule(_ context.Context, module domain.Module) error {
	if err := module.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[module.Key]; !ok {
		return domain.ErrModuleNotFound
	}
	s.modules[module.Key] = module
	return nil
}

func (s *Store) DeleteModule(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[key]; !ok {
		return domain.ErrModuleNotFound
	}
	for _, l := range s.lessons {
		if l.ModuleKey == key {
			return domain.ErrModuleInUse
		}
	}
	delete(s.modules, key)
	return nil
}

func (s *Store) GetLesson(_ context.Context, id string) (domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	return copyLesson(l), nil
}

func (s *Store) ListLessons(_ context.Context) ([]domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Lesson, 0, len(s.lessons))
	for _, l := range s.lessons {
		out = append(out, copyLesson(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InsertLesson(_ context.Context, lesson domain.Lesson) error {
	if err := lesson.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[lesson.ID]; ok {
		return domain.ErrLessonExists
	}
	if err := s.checkModuleRef(lesson.ModuleKey); err != nil {
		return err
	}
	s.lessons[lesson.ID] = copyLesson(lesson)
	return nil
}

func (s *Store) ReplaceLesson(_ context.Context, lesson domain.Lesson) error {
	if err := lesson.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[lesson.ID]; !ok {
		return domain.ErrLessonNotFound
	}
	if err := s.checkModuleRef(lesson.ModuleKey); err != nil {
		return err
	}
	s.lessons[lesson.ID] = copyLesson(lesson)
	return nil
}

func (s *Store) DeleteLesson(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[id]; !ok {
		return domain.ErrLessonNotFound
	}
	delete(s.lessons, id)
	return nil
}

func (s *Store) CreateAttempt(_ context.Context, attempt domain.Attempt) error {
	if err := attempt.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (s *Store) GetAttempt(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return copyAttempt(a), nil
}

func (s *Store) SaveAnswer(_ context.Context, attemptID string, answer domain.AttemptAnswer, at string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	s.attempts[attemptID] = copyAttempt(a.WithAnswer(answer, at))
	return nil
}

func (s *Store) FinalizeAttempt(_ context.Context, attemptID string, score int, at string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	a = copyAttempt(a)
	a.Score = &score
	a.CompletedAt = at
	a.UpdatedAt = at
	s.attempts[attemptID] = a
	return nil
}

func (s *Store) ListAttemptsByStudent(_ context.Context, studentID string) ([]domain.Attempt, error) {
	return s.filterAttempts(func(a domain.Attempt) bool { return a.StudentID == studentID }), nil
}

func (s *Store) ListAttemptsByLesson(_ context.Context, lessonID string) ([]domain.Attempt, error) {
	return s.filterAttempts(func(a domain.Attempt) bool { return a.LessonID == lessonID }), nil
}

func (s *Store) GetProgress(_ context.Context, studentID string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[studentID]
	if !ok {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	return copyProgress(p), nil
}

func (s *Store) ListProgress(_ context.Context) ([]domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Progress, 0, len(s.progress))
	for _, p := range s.progress {
		out = append(out, copyProgress(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (s *Store) UpsertProgress(_ context.Context, studentID string, fn app.ProgressMutator) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.progress[studentID]
	if !exists {
		current = domain.Progress{StudentID: studentID, CompletedLessonIDs: []string{}}
	}
	next, err := fn(copyProgress(current), exists)
	if err != nil {
		return domain.Progress{}, err
	}
	next.StudentID = studentID
	if err := next.Validate(); err != nil {
		return domain.Progress{}, err
	}
	s.progress[studentID] = copyProgress(next)
	return copyProgress(next), nil
}

func (s *Store) DeleteProgress(_ context.Context, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.progress[studentID]; !ok {
		return domain.ErrProgressNotFound
	}
	delete(s.progress, studentID)
	return nil
}

// checkModuleRef is called with mu held.
func (s *Store) checkModuleRef(key string) error {
	if key == "" {
		return nil
	}
	if _, ok := s.modules[key]; !ok {
		return domain.ErrModuleNotFound
	}
	return nil
}

func (s *Store) filterAttempts(keep func(domain.Attempt) bool) []domain.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if keep(a) {
			out = append(out, copyAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyLesson(l domain.Lesson) domain.Lesson {
	questions := make([]domain.Question, len(l.Questions))
	for i, q := range l.Questions {
		q.Options = append([]string(nil), q.Options...)
		if q.Image != nil {
			img := *q.Image
			q.Image = &img
		}
		questions[i] = q
	}
	l.Questions = questions
	return l
}

func copyAttempt(a domain.Attempt) domain.Attempt {
	answers := make([]domain.AttemptAnswer, len(a.Answers))
	for i, ans := range a.Answers {
		if ans.SelectedOption != nil {
			sel := *ans.SelectedOption
			ans.SelectedOption = &sel
		}
		answers[i] = ans
	}
	a.Answers = answers
	if a.Score != nil {
		score := *a.Score
		a.Score = &score
	}
	return a
}

func copyProgress(p domain.Progress) domain.Progress {
	p.CompletedLessonIDs = append([]string{}, p.CompletedLessonIDs...)
	return p
}
