package app

import (
	"polymer-learn-service/internal/domain"
)

// Phase is the lifecycle position of a quiz session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseInProgress Phase = "in_progress"
	PhaseReview     Phase = "review"
	PhaseCompleted  Phase = "completed"
)

// Session is one student's pass through one lesson. Transitions never mutate
// the receiver; each returns the next Session together with its effect.
//
// Every question before Frontier has been checked, so the live score and the
// final score agree once the session reaches review.
type Session struct {
	ID        string        `json:"id"`
	StudentID string        `json:"studentId"`
	AttemptID string        `json:"attemptId"`
	Lesson    domain.Lesson `json:"lesson"`
	Phase     Phase         `json:"phase"`
	Pointer   int           `json:"pointer"`
	Frontier  int           `json:"frontier"`
	Selected  []*int        `json:"selected"`
	Checked   []bool        `json:"checked"`
	Score     int           `json:"score"`
}

// CheckResult is the effect of checking the current question.
type CheckResult struct {
	QuestionIndex  int    `json:"questionIndex"`
	Selected       int    `json:"selected"`
	IsCorrect      bool   `json:"isCorrect"`
	CorrectIndex   int    `json:"correctIndex"`
	Explanation    string `json:"explanation"`
	Score          int    `json:"score"`
	AlreadyChecked bool   `json:"alreadyChecked"`
}

// Outcome is the effect of finishing a session; it feeds the progress aggregator.
type Outcome struct {
	Lesson        domain.Lesson
	FinalScore    int
	QuestionCount int
	Answers       []domain.AttemptAnswer
}

// QuestionState is the view of one question as the student last left it.
type QuestionState struct {
	Index        int             `json:"index"`
	Question     domain.Question `json:"-"`
	Selected     *int            `json:"selected"`
	Checked      bool            `json:"checked"`
	IsCorrect    *bool           `json:"isCorrect,omitempty"`
	CorrectIndex *int            `json:"correctIndex,omitempty"`
}

// StartSession opens a session on lesson with one empty answer slot per question.
func StartSession(id, studentID, attemptID string, lesson domain.Lesson) Session {
	n := len(lesson.Questions)
	return Session{
		ID:        id,
		StudentID: studentID,
		AttemptID: attemptID,
		Lesson:    lesson,
		Phase:     PhaseInProgress,
		Selected:  make([]*int, n),
		Checked:   make([]bool, n),
	}
}

// QuestionCount is the number of questions in the session's lesson.
func (s Session) QuestionCount() int {
	return len(s.Lesson.Questions)
}

// Select records option for the current question.
func (s Session) Select(questionIndex, option int) (Session, error) {
	if s.Phase != PhaseInProgress {
		return s, domain.ErrWrongPhase
	}
	if questionIndex != s.Pointer || s.Pointer >= s.QuestionCount() {
		return s, domain.ErrNotCurrentQuestion
	}
	if s.Checked[s.Pointer] {
		return s, domain.ErrAnswerLocked
	}
	if _, ok := s.Lesson.Questions[s.Pointer].OptionText(option); !ok {
		return s, domain.NewValidationError("optionIndex", "must index an existing option")
	}
	next := s.clone()
	next.Selected[s.Pointer] = &option
	return next, nil
}

// Check freezes the current selection and scores it. Checking an already
// checked question returns the same result and leaves the session unchanged.
func (s Session) Check() (Session, CheckResult, error) {
	if s.Phase != PhaseInProgress {
		return s, CheckResult{}, domain.ErrWrongPhase
	}
	if s.Pointer >= s.QuestionCount() || s.Selected[s.Pointer] == nil {
		return s, CheckResult{}, domain.ErrNoSelection
	}

	q := s.Lesson.Questions[s.Pointer]
	selected := *s.Selected[s.Pointer]
	result := CheckResult{
		QuestionIndex: s.Pointer,
		Selected:      selected,
		IsCorrect:     selected == q.CorrectIndex,
		CorrectIndex:  q.CorrectIndex,
		Explanation:   q.Explanation,
	}
	if s.Checked[s.Pointer] {
		result.Score = s.Score
		result.AlreadyChecked = true
		return s, result, nil
	}

	next := s.clone()
	next.Checked[s.Pointer] = true
	next.Score = next.liveScore()
	result.Score = next.Score
	return next, result, nil
}

// Advance moves past a checked question. done is true when the session
// entered review.
func (s Session) Advance() (next Session, done bool, err error) {
	if s.Phase != PhaseInProgress {
		return s, false, domain.ErrWrongPhase
	}
	n := s.QuestionCount()
	if n > 0 && !s.Checked[s.Pointer] {
		return s, false, domain.ErrNotChecked
	}
	next = s.clone()
	if s.Pointer < n-1 {
		next.Pointer++
		if next.Pointer > next.Frontier {
			next.Frontier = next.Pointer
		}
		return next, false, nil
	}
	next.Phase = PhaseReview
	return next, true, nil
}

// GoTo navigates to any question up to the furthest one reached, including
// from review back into the quiz.
func (s Session) GoTo(questionIndex int) (Session, error) {
	if s.Phase != PhaseInProgress && s.Phase != PhaseReview {
		return s, domain.ErrWrongPhase
	}
	if questionIndex < 0 || questionIndex > s.Frontier || questionIndex >= s.QuestionCount() {
		return s, domain.ErrQuestionNotReached
	}
	next := s.clone()
	next.Pointer = questionIndex
	next.Phase = PhaseInProgress
	return next, nil
}

// Retry clears every answer and restarts the same lesson under a new attempt.
func (s Session) Retry(attemptID string) (Session, error) {
	if s.Phase != PhaseReview {
		return s, domain.ErrWrongPhase
	}
	return StartSession(s.ID, s.StudentID, attemptID, s.Lesson), nil
}

// Finish closes a reviewed session and reports what should be persisted.
func (s Session) Finish() (Session, Outcome, error) {
	if s.Phase != PhaseReview {
		return s, Outcome{}, domain.ErrWrongPhase
	}
	n := s.QuestionCount()
	if n == 0 {
		return s, Outcome{}, domain.ErrInvalidLessonState
	}
	outcome := Outcome{
		Lesson:        s.Lesson,
		FinalScore:    s.finalScore(),
		QuestionCount: n,
		Answers:       s.Answers(),
	}
	next := s.cleared()
	next.Phase = PhaseCompleted
	return next, outcome, nil
}

// Discard leaves review without persisting anything.
func (s Session) Discard() (Session, error) {
	if s.Phase != PhaseReview {
		return s, domain.ErrWrongPhase
	}
	return s.cleared(), nil
}

// Exit abandons the session from any phase.
func (s Session) Exit() Session {
	return s.cleared()
}

// Current returns the state of the question under the pointer.
func (s Session) Current() (QuestionState, bool) {
	return s.QuestionAt(s.Pointer)
}

// QuestionAt returns the stored selection and checked status of question i.
// Correctness is only revealed once the question is checked.
func (s Session) QuestionAt(i int) (QuestionState, bool) {
	if i < 0 || i >= s.QuestionCount() || i >= len(s.Selected) {
		return QuestionState{}, false
	}
	q := s.Lesson.Questions[i]
	state := QuestionState{
		Index:    i,
		Question: q,
		Selected: copyInt(s.Selected[i]),
		Checked:  s.Checked[i],
	}
	if state.Checked && state.Selected != nil {
		correct := *state.Selected == q.CorrectIndex
		state.IsCorrect = &correct
		idx := q.CorrectIndex
		state.CorrectIndex = &idx
	}
	return state, true
}

// Answers lists the checked answers in question order.
func (s Session) Answers() []domain.AttemptAnswer {
	answers := make([]domain.AttemptAnswer, 0, len(s.Checked))
	for i, checked := range s.Checked {
		if !checked {
			continue
		}
		sel := copyInt(s.Selected[i])
		answers = append(answers, domain.AttemptAnswer{
			QuestionIndex:  i,
			SelectedOption: sel,
			IsCorrect:      sel != nil && *sel == s.Lesson.Questions[i].CorrectIndex,
		})
	}
	return answers
}

// PreviewXP is the XP the student would earn by finishing now.
func (s Session) PreviewXP() int {
	xp, err := EarnedXP(s.finalScore(), s.QuestionCount(), s.Lesson.XPReward)
	if err != nil {
		return 0
	}
	return xp
}

func (s Session) liveScore() int {
	score := 0
	for i, checked := range s.Checked {
		if checked && s.Selected[i] != nil && *s.Selected[i] == s.Lesson.Questions[i].CorrectIndex {
			score++
		}
	}
	return score
}

func (s Session) finalScore() int {
	score := 0
	for i, sel := range s.Selected {
		if sel != nil && *sel == s.Lesson.Questions[i].CorrectIndex {
			score++
		}
	}
	return score
}

func (s Session) cleared() Session {
	return Session{
		ID:        s.ID,
		StudentID: s.StudentID,
		AttemptID: s.AttemptID,
		Lesson:    s.Lesson,
		Phase:     PhaseIdle,
	}
}

func (s Session) clone() Session {
	next := s
	next.Selected = make([]*int, len(s.Selected))
	for i, sel := range s.Selected {
		next.Selected[i] = copyInt(sel)
	}
	next.Checked = append([]bool(nil), s.Checked...)
	return next
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
