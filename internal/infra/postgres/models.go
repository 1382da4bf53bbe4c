package postgres

import (
	"github.com/uptrace/bun"

	"polymer-learn-service/internal/domain"
)

type moduleRow struct {
	bun.BaseModel `bun:"table:modules,alias:m"`

	Key         string `bun:"module_key,pk"`
	Code        string `bun:"code"`
	Title       string `bun:"title"`
	Description string `bun:"description"`
	ColorTheme  string `bun:"color_theme"`
	IconKey     string `bun:"icon_key"`
	Order       int    `bun:"sort_order"`
	IsDefault   bool   `bun:"is_default"`
}

type lessonRow struct {
	bun.BaseModel `bun:"table:lessons,alias:l"`

	ID          string            `bun:"id,pk"`
	Title       string            `bun:"title"`
	Description string            `bun:"description"`
	Difficulty  string            `bun:"difficulty"`
	XPReward    int               `bun:"xp_reward"`
	Order       int               `bun:"sort_order"`
	ModuleKey   *string           `bun:"module_key"`
	Questions   []domain.Question `bun:"questions,type:jsonb"`
	IsDefault   bool              `bun:"is_default"`
	OwnerID     string            `bun:"owner_id"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID          string                 `bun:"id,pk"`
	StudentID   string                 `bun:"student_id"`
	LessonID    string                 `bun:"lesson_id"`
	StartedAt   string                 `bun:"started_at"`
	UpdatedAt   string                 `bun:"updated_at"`
	CompletedAt string                 `bun:"completed_at"`
	Score       *int                   `bun:"score"`
	Answers     []domain.AttemptAnswer `bun:"answers,type:jsonb"`
}

type progressRow struct {
	bun.BaseModel `bun:"table:progress,alias:p"`

	StudentID          string   `bun:"student_id,pk"`
	UserName           string   `bun:"user_name"`
	XP                 int      `bun:"xp"`
	Streak             int      `bun:"streak"`
	CompletedLessonIDs []string `bun:"completed_lesson_ids,array"`
	LastUpdated        string   `bun:"last_updated"`
}

func toModuleRow(m domain.Module) moduleRow {
	return moduleRow{
		Key:         m.Key,
		Code:        m.Code,
		Title:       m.Title,
		Description: m.Description,
		ColorTheme:  m.ColorTheme,
		IconKey:     m.IconKey,
		Order:       m.Order,
		IsDefault:   m.IsDefault,
	}
}

func (r moduleRow) toDomain() domain.Module {
	return domain.Module{
		Key:         r.Key,
		Code:        r.Code,
		Title:       r.Title,
		Description: r.Description,
		ColorTheme:  r.ColorTheme,
		IconKey:     r.IconKey,
		Order:       r.Order,
		IsDefault:   r.IsDefault,
	}
}

func toLessonRow(l domain.Lesson) lessonRow {
	row := lessonRow{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Difficulty:  l.Difficulty,
		XPReward:    l.XPReward,
		Order:       l.Order,
		Questions:   l.Questions,
		IsDefault:   l.IsDefault,
		OwnerID:     l.OwnerID,
	}
	if l.ModuleKey != "" {
		key := l.ModuleKey
		row.ModuleKey = &key
	}
	if row.Questions == nil {
		row.Questions = []domain.Question{}
	}
	return row
}

func (r lessonRow) toDomain() domain.Lesson {
	l := domain.Lesson{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Difficulty:  r.Difficulty,
		XPReward:    r.XPReward,
		Order:       r.Order,
		Questions:   r.Questions,
		IsDefault:   r.IsDefault,
		OwnerID:     r.OwnerID,
	}
	if r.ModuleKey != nil {
		l.ModuleKey = *r.ModuleKey
	}
	if l.Questions == nil {
		l.Questions = []domain.Question{}
	}
	return l
}

func toAttemptRow(a domain.Attempt) attemptRow {
	row := attemptRow{
		ID:          a.ID,
		StudentID:   a.StudentID,
		LessonID:    a.LessonID,
		StartedAt:   a.StartedAt,
		UpdatedAt:   a.UpdatedAt,
		CompletedAt: a.CompletedAt,
		Score:       a.Score,
		Answers:     a.Answers,
	}
	if row.Answers == nil {
		row.Answers = []domain.AttemptAnswer{}
	}
	return row
}

func (r attemptRow) toDomain() domain.Attempt {
	a := domain.Attempt{
		ID:          r.ID,
		StudentID:   r.StudentID,
		LessonID:    r.LessonID,
		StartedAt:   r.StartedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
		Score:       r.Score,
		Answers:     r.Answers,
	}
	if a.Answers == nil {
		a.Answers = []domain.AttemptAnswer{}
	}
	return a
}

func toProgressRow(p domain.Progress) progressRow {
	row := progressRow{
		StudentID:          p.StudentID,
		UserName:           p.UserName,
		XP:                 p.XP,
		Streak:             p.Streak,
		CompletedLessonIDs: p.CompletedLessonIDs,
		LastUpdated:        p.LastUpdated,
	}
	if row.CompletedLessonIDs == nil {
		row.CompletedLessonIDs = []string{}
	}
	return row
}

func (r progressRow) toDomain() domain.Progress {
	p := domain.Progress{
		StudentID:          r.StudentID,
		UserName:           r.UserName,
		XP:                 r.XP,
		Streak:             r.Streak,
		CompletedLessonIDs: r.CompletedLessonIDs,
		LastUpdated:        r.LastUpdated,
	}
	if p.CompletedLessonIDs == nil {
		p.CompletedLessonIDs = []string{}
	}
	return p
}
