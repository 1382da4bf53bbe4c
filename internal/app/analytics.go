package app

import (
	"context"
	"errors"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"polymer-learn-service/internal/domain"
)

const (
	// DefaultStrugglingThreshold is the XP below which a student needs attention.
	DefaultStrugglingThreshold = 100

	questionUnavailable = "question unavailable"
	optionUnavailable   = "option unavailable"
	noAnswer            = "no answer"
)

// AnalyticsSource is the read-only view of the store used for reports.
type AnalyticsSource interface {
	ListProgress(ctx context.Context) ([]domain.Progress, error)
	ListLessons(ctx context.Context) ([]domain.Lesson, error)
	GetLesson(ctx context.Context, id string) (domain.Lesson, error)
	ListAttemptsByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error)
	ListAttemptsByLesson(ctx context.Context, lessonID string) ([]domain.Attempt, error)
}

// AnalyticsConfig tunes the class report. Zero values fall back to defaults.
type AnalyticsConfig struct {
	StrugglingThreshold int
	// LeaderboardLimit caps the leaderboard rows; 0 keeps every student.
	LeaderboardLimit int
}

// StudentStatus buckets a student by completion rate.
type StudentStatus string

const (
	StatusOnTrack StudentStatus = "on_track"
	StatusActive  StudentStatus = "active"
	StatusAtRisk  StudentStatus = "at_risk"
)

// LeaderboardRow is one student in the class ranking.
type LeaderboardRow struct {
	Rank            int           `json:"rank"`
	StudentID       string        `json:"studentId"`
	UserName        string        `json:"userName,omitempty"`
	XP              int           `json:"xp"`
	Streak          int           `json:"streak"`
	CompletedCount  int           `json:"completedCount"`
	ProgressPercent int           `json:"progressPercent"`
	Status          StudentStatus `json:"status"`
}

// ClassStats is the instructor dashboard summary.
type ClassStats struct {
	TotalStudents   int              `json:"totalStudents"`
	AvgXP           int              `json:"avgXP"`
	StrugglingCount int              `json:"strugglingCount"`
	TotalLessons    int              `json:"totalLessons"`
	Leaderboard     []LeaderboardRow `json:"leaderboard"`
}

// ReportAnswer is one recorded answer joined against the current question.
type ReportAnswer struct {
	QuestionIndex  int    `json:"questionIndex"`
	Question       string `json:"question"`
	SelectedOption *int   `json:"selectedOption"`
	SelectedText   string `json:"selectedText"`
	CorrectText    string `json:"correctText"`
	IsCorrect      bool   `json:"isCorrect"`
	Explanation    string `json:"explanation,omitempty"`
}

// ReportRow is a student's latest attempt at one lesson.
type ReportRow struct {
	LessonID      string         `json:"lessonId"`
	LessonTitle   string         `json:"lessonTitle"`
	AttemptID     string         `json:"attemptId"`
	StartedAt     string         `json:"startedAt"`
	UpdatedAt     string         `json:"updatedAt"`
	CompletedAt   string         `json:"completedAt,omitempty"`
	Score         *int           `json:"score,omitempty"`
	QuestionCount int            `json:"questionCount"`
	Answers       []ReportAnswer `json:"answers"`
}

// OptionCount is how many students last picked one option.
type OptionCount struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Count     int    `json:"count"`
	IsCorrect bool   `json:"isCorrect"`
	Available bool   `json:"available"`
}

// ResponseDistribution counts each student's latest answer to one question.
type ResponseDistribution struct {
	LessonID      string        `json:"lessonId"`
	QuestionIndex int           `json:"questionIndex"`
	Question      string        `json:"question"`
	Respondents   int           `json:"respondents"`
	NoAnswer      int           `json:"noAnswer"`
	Options       []OptionCount `json:"options"`
}

// ClassAnalytics produces read-only instructor reports.
type ClassAnalytics struct {
	src  AnalyticsSource
	cfg  AnalyticsConfig
	opts options
}

func NewClassAnalytics(src AnalyticsSource, cfg AnalyticsConfig, opts ...Option) *ClassAnalytics {
	if cfg.StrugglingThreshold <= 0 {
		cfg.StrugglingThreshold = DefaultStrugglingThreshold
	}
	return &ClassAnalytics{src: src, cfg: cfg, opts: buildOptions(opts)}
}

// ClassStats summarises every student's progress.
func (a *ClassAnalytics) ClassStats(ctx context.Context) (ClassStats, error) {
	var (
		progress []domain.Progress
		lessons  []domain.Lesson
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		progress, err = a.src.ListProgress(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		lessons, err = a.src.ListLessons(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ClassStats{}, err
	}
	return ComputeClassStats(progress, len(lessons), a.cfg), nil
}

// TopLearners returns the first n leaderboard rows.
func (a *ClassAnalytics) TopLearners(ctx context.Context, n int) ([]LeaderboardRow, error) {
	stats, err := a.ClassStats(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(stats.Leaderboard) > n {
		return stats.Leaderboard[:n], nil
	}
	return stats.Leaderboard, nil
}

// ComputeClassStats aggregates progress records against the lesson count.
// Students with equal XP keep their input order.
func ComputeClassStats(progress []domain.Progress, totalLessons int, cfg AnalyticsConfig) ClassStats {
	threshold := cfg.StrugglingThreshold
	if threshold <= 0 {
		threshold = DefaultStrugglingThreshold
	}

	stats := ClassStats{TotalStudents: len(progress), TotalLessons: totalLessons}
	totalXP := 0
	for _, p := range progress {
		totalXP += p.XP
		if p.XP < threshold {
			stats.StrugglingCount++
		}
	}
	if stats.TotalStudents > 0 {
		stats.AvgXP = int(math.Round(float64(totalXP) / float64(stats.TotalStudents)))
	}

	ranked := append([]domain.Progress(nil), progress...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].XP > ranked[j].XP
	})
	if cfg.LeaderboardLimit > 0 && len(ranked) > cfg.LeaderboardLimit {
		ranked = ranked[:cfg.LeaderboardLimit]
	}

	stats.Leaderboard = make([]LeaderboardRow, 0, len(ranked))
	for i, p := range ranked {
		completed := len(p.CompletedLessonIDs)
		percent := 0
		if totalLessons > 0 {
			percent = int(math.Round(float64(completed) / float64(totalLessons) * 100))
		}
		stats.Leaderboard = append(stats.Leaderboard, LeaderboardRow{
			Rank:            i + 1,
			StudentID:       p.StudentID,
			UserName:        p.UserName,
			XP:              p.XP,
			Streak:          p.Streak,
			CompletedCount:  completed,
			ProgressPercent: percent,
			Status:          statusFor(percent),
		})
	}
	return stats
}

func statusFor(percent int) StudentStatus {
	switch {
	case percent > 70:
		return StatusOnTrack
	case percent < 20:
		return StatusAtRisk
	default:
		return StatusActive
	}
}

// StudentReport lists the latest attempt per lesson for studentID. Attempts
// on lessons that no longer exist are left out.
func (a *ClassAnalytics) StudentReport(ctx context.Context, studentID string) ([]ReportRow, error) {
	var (
		attempts []domain.Attempt
		lessons  []domain.Lesson
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attempts, err = a.src.ListAttemptsByStudent(gctx, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		lessons, err = a.src.ListLessons(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Lesson, len(lessons))
	for _, l := range lessons {
		byID[l.ID] = l
	}

	latest := latestAttempts(attempts, func(at domain.Attempt) string { return at.LessonID })
	rows := make([]ReportRow, 0, len(latest))
	for lessonID, attempt := range latest {
		lesson, ok := byID[lessonID]
		if !ok {
			continue
		}
		rows = append(rows, buildReportRow(lesson, attempt))
	}
	sort.Slice(rows, func(i, j int) bool {
		oi, oj := byID[rows[i].LessonID].Order, byID[rows[j].LessonID].Order
		if oi != oj {
			return oi < oj
		}
		return rows[i].LessonID < rows[j].LessonID
	})
	return rows, nil
}

func buildReportRow(lesson domain.Lesson, attempt domain.Attempt) ReportRow {
	answers := append([]domain.AttemptAnswer(nil), attempt.Answers...)
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })

	row := ReportRow{
		LessonID:      lesson.ID,
		LessonTitle:   lesson.Title,
		AttemptID:     attempt.ID,
		StartedAt:     attempt.StartedAt,
		UpdatedAt:     attempt.UpdatedAt,
		CompletedAt:   attempt.CompletedAt,
		Score:         attempt.Score,
		QuestionCount: len(lesson.Questions),
		Answers:       make([]ReportAnswer, 0, len(answers)),
	}
	for _, ans := range answers {
		out := ReportAnswer{
			QuestionIndex:  ans.QuestionIndex,
			SelectedOption: ans.SelectedOption,
			IsCorrect:      ans.IsCorrect,
			Question:       questionUnavailable,
			SelectedText:   optionUnavailable,
			CorrectText:    optionUnavailable,
		}
		if ans.SelectedOption == nil {
			out.SelectedText = noAnswer
		}
		if ans.QuestionIndex >= 0 && ans.QuestionIndex < len(lesson.Questions) {
			q := lesson.Questions[ans.QuestionIndex]
			out.Question = q.Text
			out.Explanation = q.Explanation
			if text, ok := q.OptionText(q.CorrectIndex); ok {
				out.CorrectText = text
			}
			if ans.SelectedOption != nil {
				if text, ok := q.OptionText(*ans.SelectedOption); ok {
					out.SelectedText = text
				}
			}
		}
		row.Answers = append(row.Answers, out)
	}
	return row
}

// QuestionResponseDistribution counts, once per student, the option picked
// for questionIndex in that student's latest attempt at lessonID.
func (a *ClassAnalytics) QuestionResponseDistribution(ctx context.Context, lessonID string, questionIndex int) (ResponseDistribution, error) {
	var (
		attempts []domain.Attempt
		lesson   domain.Lesson
		found    bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attempts, err = a.src.ListAttemptsByLesson(gctx, lessonID)
		return err
	})
	g.Go(func() error {
		l, err := a.src.GetLesson(gctx, lessonID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		lesson, found = l, true
		return nil
	})
	if err := g.Wait(); err != nil {
		return ResponseDistribution{}, err
	}

	dist := ResponseDistribution{
		LessonID:      lessonID,
		QuestionIndex: questionIndex,
		Question:      questionUnavailable,
	}
	var question *domain.Question
	if found && questionIndex >= 0 && questionIndex < len(lesson.Questions) {
		question = &lesson.Questions[questionIndex]
		dist.Question = question.Text
	}

	counts := make(map[int]int)
	latest := latestAttempts(attempts, func(at domain.Attempt) string { return at.StudentID })
	for _, attempt := range latest {
		dist.Respondents++
		ans, ok := attempt.Answer(questionIndex)
		if !ok || ans.SelectedOption == nil {
			dist.NoAnswer++
			continue
		}
		counts[*ans.SelectedOption]++
	}

	if question != nil {
		for i, text := range question.Options {
			dist.Options = append(dist.Options, OptionCount{
				Index:     i,
				Text:      text,
				Count:     counts[i],
				IsCorrect: i == question.CorrectIndex,
				Available: true,
			})
			delete(counts, i)
		}
	}
	stale := make([]int, 0, len(counts))
	for idx := range counts {
		stale = append(stale, idx)
	}
	sort.Ints(stale)
	for _, idx := range stale {
		dist.Options = append(dist.Options, OptionCount{Index: idx, Text: optionUnavailable, Count: counts[idx]})
	}
	return dist, nil
}

// latestAttempts keeps, per key, the attempt with the greatest UpdatedAt
// string. Equal timestamps keep the attempt seen first.
func latestAttempts(attempts []domain.Attempt, key func(domain.Attempt) string) map[string]domain.Attempt {
	latest := make(map[string]domain.Attempt)
	for _, at := range attempts {
		k := key(at)
		if current, ok := latest[k]; !ok || at.UpdatedAt > current.UpdatedAt {
			latest[k] = at
		}
	}
	return latest
}
