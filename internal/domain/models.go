package domain

import "time"

// TimestampLayout is fixed-width so that string order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp renders t in TimestampLayout (UTC).
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Module is a top-level course grouping of lessons.
type Module struct {
	Key         string `json:"moduleKey" validate:"required,max=32"`
	Code        string `json:"code" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	ColorTheme  string `json:"colorTheme"`
	IconKey     string `json:"iconKey"`
	Order       int    `json:"order"`
	IsDefault   bool   `json:"isDefault"`
}

// ImageRef points at a question image: either a direct URL or a stored blob.
type ImageRef struct {
	URL     string `json:"url,omitempty" validate:"omitempty,url"`
	BlobRef string `json:"blobRef,omitempty"`
}

// Question is a multiple-choice question with exactly one correct option.
type Question struct {
	Text         string    `json:"text" validate:"required"`
	Options      []string  `json:"options" validate:"min=2,dive,required"`
	CorrectIndex int       `json:"correctIndex" validate:"gte=0"`
	Explanation  string    `json:"explanation"`
	Image        *ImageRef `json:"image,omitempty"`
}

// OptionText returns the text of option i, or false if i is out of range.
func (q Question) OptionText(i int) (string, bool) {
	if i < 0 || i >= len(q.Options) {
		return "", false
	}
	return q.Options[i], true
}

// Lesson is an ordered set of questions with a difficulty and XP reward.
type Lesson struct {
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Difficulty  string     `json:"difficulty"`
	XPReward    int        `json:"xpReward" validate:"gt=0"`
	Order       int        `json:"order"`
	ModuleKey   string     `json:"moduleKey,omitempty"`
	Questions   []Question `json:"questions" validate:"dive"`
	IsDefault   bool       `json:"isDefault"`
	OwnerID     string     `json:"ownerId,omitempty"`
}

// BlobRefs lists the stored images referenced by the lesson's questions.
func (l Lesson) BlobRefs() []string {
	var refs []string
	for _, q := range l.Questions {
		if q.Image != nil && q.Image.BlobRef != "" {
			refs = append(refs, q.Image.BlobRef)
		}
	}
	return refs
}

// AttemptAnswer is the recorded answer for one question of an attempt.
type AttemptAnswer struct {
	QuestionIndex  int  `json:"questionIndex" validate:"gte=0"`
	SelectedOption *int `json:"selectedOption"`
	IsCorrect      bool `json:"isCorrect"`
}

// Attempt is one student's run through a lesson, possibly incomplete.
type Attempt struct {
	ID          string          `json:"id" validate:"required"`
	StudentID   string          `json:"studentId" validate:"required"`
	LessonID    string          `json:"lessonId" validate:"required"`
	StartedAt   string          `json:"startedAt" validate:"required"`
	UpdatedAt   string          `json:"updatedAt" validate:"required"`
	CompletedAt string          `json:"completedAt,omitempty"`
	Score       *int            `json:"score,omitempty"`
	Answers     []AttemptAnswer `json:"answers" validate:"dive"`
}

// Answer returns the recorded answer for a question index.
func (a Attempt) Answer(questionIndex int) (AttemptAnswer, bool) {
	for _, ans := range a.Answers {
		if ans.QuestionIndex == questionIndex {
			return ans, true
		}
	}
	return AttemptAnswer{}, false
}

// WithAnswer replaces any answer for the same question index and bumps UpdatedAt.
func (a Attempt) WithAnswer(answer AttemptAnswer, at string) Attempt {
	next := make([]AttemptAnswer, 0, len(a.Answers)+1)
	for _, existing := range a.Answers {
		if existing.QuestionIndex != answer.QuestionIndex {
			next = append(next, existing)
		}
	}
	a.Answers = append(next, answer)
	a.UpdatedAt = at
	return a
}

// Progress is the cumulative per-student state.
type Progress struct {
	StudentID          string   `json:"studentId" validate:"required"`
	UserName           string   `json:"userName,omitempty"`
	XP                 int      `json:"xp" validate:"gte=0"`
	Streak             int      `json:"streak" validate:"gte=0"`
	CompletedLessonIDs []string `json:"completedLessonIds" validate:"unique"`
	LastUpdated        string   `json:"lastUpdated,omitempty"`
}

// HasCompleted reports whether lessonID is in the completed set.
func (p Progress) HasCompleted(lessonID string) bool {
	for _, id := range p.CompletedLessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// WithCompleted returns p with lessonID added to the completed set.
func (p Progress) WithCompleted(lessonID string) Progress {
	ids := make([]string, 0, len(p.CompletedLessonIDs)+1)
	ids = append(ids, p.CompletedLessonIDs...)
	if !p.HasCompleted(lessonID) {
		ids = append(ids, lessonID)
	}
	p.CompletedLessonIDs = ids
	return p
}
