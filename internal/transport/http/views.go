package http

import (
	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

// questionView is what a student sees of a question. The correct option and
// explanation stay hidden until the question is checked.
type questionView struct {
	Index        int              `json:"index"`
	Text         string           `json:"text"`
	Options      []string         `json:"options"`
	Image        *domain.ImageRef `json:"image,omitempty"`
	Selected     *int             `json:"selected"`
	Checked      bool             `json:"checked"`
	IsCorrect    *bool            `json:"isCorrect,omitempty"`
	CorrectIndex *int             `json:"correctIndex,omitempty"`
	Explanation  string           `json:"explanation,omitempty"`
}

type sessionView struct {
	ID            string         `json:"id"`
	LessonID      string         `json:"lessonId"`
	LessonTitle   string         `json:"lessonTitle"`
	Phase         app.Phase      `json:"phase"`
	QuestionIndex int            `json:"questionIndex"`
	QuestionCount int            `json:"questionCount"`
	Frontier      int            `json:"frontier"`
	Score         int            `json:"score"`
	PreviewXP     int            `json:"previewXP"`
	Current       *questionView  `json:"current,omitempty"`
	Review        []questionView `json:"review,omitempty"`
}

func newSessionView(s app.Session) sessionView {
	view := sessionView{
		ID:            s.ID,
		LessonID:      s.Lesson.ID,
		LessonTitle:   s.Lesson.Title,
		Phase:         s.Phase,
		QuestionIndex: s.Pointer,
		QuestionCount: s.QuestionCount(),
		Frontier:      s.Frontier,
		Score:         s.Score,
	}
	switch s.Phase {
	case app.PhaseInProgress:
		if state, ok := s.Current(); ok {
			qv := newQuestionView(state)
			view.Current = &qv
		}
	case app.PhaseReview:
		view.PreviewXP = s.PreviewXP()
		view.Review = make([]questionView, 0, s.QuestionCount())
		for i := 0; i < s.QuestionCount(); i++ {
			if state, ok := s.QuestionAt(i); ok {
				view.Review = append(view.Review, newQuestionView(state))
			}
		}
	}
	return view
}

func newQuestionView(state app.QuestionState) questionView {
	qv := questionView{
		Index:        state.Index,
		Text:         state.Question.Text,
		Options:      state.Question.Options,
		Image:        state.Question.Image,
		Selected:     state.Selected,
		Checked:      state.Checked,
		IsCorrect:    state.IsCorrect,
		CorrectIndex: state.CorrectIndex,
	}
	if state.Checked {
		qv.Explanation = state.Question.Explanation
	}
	return qv
}

// lessonSummary is the student catalogue entry; questions are only served
// through sessions.
type lessonSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Difficulty    string `json:"difficulty"`
	XPReward      int    `json:"xpReward"`
	Order         int    `json:"order"`
	ModuleKey     string `json:"moduleKey,omitempty"`
	IsDefault     bool   `json:"isDefault"`
	QuestionCount int    `json:"questionCount"`
}

func newLessonSummary(l domain.Lesson) lessonSummary {
	return lessonSummary{
		ID:            l.ID,
		Title:         l.Title,
		Description:   l.Description,
		Difficulty:    l.Difficulty,
		XPReward:      l.XPReward,
		Order:         l.Order,
		ModuleKey:     l.ModuleKey,
		IsDefault:     l.IsDefault,
		QuestionCount: len(l.Questions),
	}
}

type checkView struct {
	app.CheckResult
	Session sessionView `json:"session"`
}

type advanceView struct {
	Done    bool        `json:"done"`
	Session sessionView `json:"session"`
}
