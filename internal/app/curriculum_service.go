package app

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"polymer-learn-service/internal/domain"
)

const maxModuleKeyLen = 32

// ModuleInput is the instructor payload for creating or editing a module.
type ModuleInput struct {
	ModuleKey   string `json:"moduleKey"`
	Code        string `json:"code" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	ColorTheme  string `json:"colorTheme"`
	IconKey     string `json:"iconKey"`
	Order       *int   `json:"order"`
}

// LessonInput is the instructor payload for creating or editing a lesson.
// Questions always replace the lesson's whole question set.
type LessonInput struct {
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description"`
	Difficulty  string            `json:"difficulty"`
	XPReward    int               `json:"xpReward" validate:"gt=0"`
	Order       *int              `json:"order"`
	ModuleKey   string            `json:"moduleKey"`
	Questions   []domain.Question `json:"questions" validate:"dive"`
}

// Export is a student's downloadable backup.
type Export struct {
	Progress   domain.Progress `json:"progress"`
	Lessons    []domain.Lesson `json:"lessons"`
	ExportDate string          `json:"exportDate"`
}

// CurriculumService manages modules and lessons on behalf of instructors.
type CurriculumService struct {
	store    ContentStore
	blobs    BlobStore
	cache    LessonCache
	identity Identity
	opts     options
}

// NewCurriculumService wires the service; cache may be nil.
func NewCurriculumService(store ContentStore, blobs BlobStore, cache LessonCache, identity Identity, opts ...Option) *CurriculumService {
	return &CurriculumService{
		store:    store,
		blobs:    blobs,
		cache:    cache,
		identity: identity,
		opts:     buildOptions(opts),
	}
}

// ListModules merges the default modules with stored ones; a stored module
// wins on key collision.
func (c *CurriculumService) ListModules(ctx context.Context) ([]domain.Module, error) {
	stored, err := c.store.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]domain.Module)
	for _, m := range domain.DefaultModules() {
		byKey[m.Key] = m
	}
	for _, m := range stored {
		byKey[m.Key] = m
	}
	modules := make([]domain.Module, 0, len(byKey))
	for _, m := range byKey {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Order != modules[j].Order {
			return modules[i].Order < modules[j].Order
		}
		return modules[i].Key < modules[j].Key
	})
	return modules, nil
}

// CreateModule stores a new module under a key slugified from ModuleKey or Code.
func (c *CurriculumService) CreateModule(ctx context.Context, in ModuleInput) (domain.Module, error) {
	in = trimModuleInput(in)
	if err := domain.Struct(in); err != nil {
		return domain.Module{}, err
	}
	key := SlugifyModuleKey(in.ModuleKey)
	if key == "" {
		key = SlugifyModuleKey(in.Code)
	}
	if key == "" {
		return domain.Module{}, domain.NewValidationError("moduleKey", "must contain letters or digits")
	}
	if domain.IsReservedModuleKey(key) {
		return domain.Module{}, domain.ErrModuleReserved
	}

	existing, err := c.store.ListModules(ctx)
	if err != nil {
		return domain.Module{}, err
	}
	maxOrder := 0
	for _, m := range existing {
		if m.Key == key {
			return domain.Module{}, domain.ErrModuleExists
		}
		if m.Order > maxOrder {
			maxOrder = m.Order
		}
	}

	module := domain.Module{
		Key:         key,
		Code:        in.Code,
		Title:       in.Title,
		Description: in.Description,
		ColorTheme:  in.ColorTheme,
		IconKey:     in.IconKey,
		Order:       maxOrder + 1,
	}
	if module.IconKey == "" {
		module.IconKey = "atom"
	}
	if in.Order != nil {
		module.Order = *in.Order
	}
	if err := c.store.InsertModule(ctx, module); err != nil {
		return domain.Module{}, err
	}
	c.opts.log.Info("module created", zap.String("module", key))
	return module, nil
}

// UpdateModule edits a stored module in place; the key never changes.
func (c *CurriculumService) UpdateModule(ctx context.Context, key string, in ModuleInput) (domain.Module, error) {
	in = trimModuleInput(in)
	if err := domain.Struct(in); err != nil {
		return domain.Module{}, err
	}
	if domain.IsReservedModuleKey(key) {
		return domain.Module{}, domain.ErrModuleReserved
	}
	module, err := c.store.GetModule(ctx, key)
	if err != nil {
		return domain.Module{}, err
	}
	module.Code = in.Code
	module.Title = in.Title
	module.Description = in.Description
	module.ColorTheme = in.ColorTheme
	if in.IconKey != "" {
		module.IconKey = in.IconKey
	}
	if in.Order != nil {
		module.Order = *in.Order
	}
	if err := c.store.ReplaceModule(ctx, module); err != nil {
		return domain.Module{}, err
	}
	return module, nil
}

// DeleteModule removes a module that no lesson references.
func (c *CurriculumService) DeleteModule(ctx context.Context, key string) error {
	if domain.IsReservedModuleKey(key) {
		return domain.ErrModuleReserved
	}
	if err := c.store.DeleteModule(ctx, key); err != nil {
		return err
	}
	c.opts.log.Info("module deleted", zap.String("module", key))
	return nil
}

// ListLessons returns every lesson ordered for display, with stored images
// resolved to URLs.
func (c *CurriculumService) ListLessons(ctx context.Context) ([]domain.Lesson, error) {
	lessons, err := c.store.ListLessons(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	for i := range lessons {
		lessons[i], err = c.resolveImages(ctx, lessons[i])
		if err != nil {
			return nil, err
		}
	}
	return lessons, nil
}

// GetLesson returns one lesson with images resolved.
func (c *CurriculumService) GetLesson(ctx context.Context, id string) (domain.Lesson, error) {
	lesson, err := c.store.GetLesson(ctx, id)
	if err != nil {
		return domain.Lesson{}, err
	}
	return c.resolveImages(ctx, lesson)
}

// CreateLesson stores a new lesson authored by the caller.
func (c *CurriculumService) CreateLesson(ctx context.Context, in LessonInput) (domain.Lesson, error) {
	ownerID, err := c.identity.CurrentUserID(ctx)
	if err != nil {
		return domain.Lesson{}, err
	}
	in = trimLessonInput(in)
	if err := c.checkLessonInput(ctx, in); err != nil {
		return domain.Lesson{}, err
	}

	lesson := domain.Lesson{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		XPReward:    in.XPReward,
		ModuleKey:   in.ModuleKey,
		Questions:   in.Questions,
		OwnerID:     ownerID,
	}
	if in.Order != nil {
		lesson.Order = *in.Order
	} else {
		lesson.Order, err = c.nextLessonOrder(ctx)
		if err != nil {
			return domain.Lesson{}, err
		}
	}
	if err := c.store.InsertLesson(ctx, lesson); err != nil {
		return domain.Lesson{}, err
	}
	c.opts.log.Info("lesson created", zap.String("lesson", lesson.ID), zap.String("owner", ownerID))
	return lesson, nil
}

// UpdateLesson replaces a lesson's fields and its whole question set. Images
// no longer referenced are released once the write succeeded.
func (c *CurriculumService) UpdateLesson(ctx context.Context, id string, in LessonInput) (domain.Lesson, error) {
	in = trimLessonInput(in)
	if err := c.checkLessonInput(ctx, in); err != nil {
		return domain.Lesson{}, err
	}
	old, err := c.store.GetLesson(ctx, id)
	if err != nil {
		return domain.Lesson{}, err
	}

	lesson := old
	lesson.Title = in.Title
	lesson.Description = in.Description
	lesson.Difficulty = in.Difficulty
	lesson.XPReward = in.XPReward
	lesson.ModuleKey = in.ModuleKey
	lesson.Questions = in.Questions
	if in.Order != nil {
		lesson.Order = *in.Order
	}
	if err := c.store.ReplaceLesson(ctx, lesson); err != nil {
		return domain.Lesson{}, err
	}
	c.invalidate(ctx, id)
	c.releaseBlobs(ctx, unreferenced(old.BlobRefs(), lesson.BlobRefs()))
	return lesson, nil
}

// DeleteLesson removes a lesson and its images. Attempts on it remain and
// drop out of reports.
func (c *CurriculumService) DeleteLesson(ctx context.Context, id string) error {
	old, err := c.store.GetLesson(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.DeleteLesson(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	c.releaseBlobs(ctx, old.BlobRefs())
	c.opts.log.Info("lesson deleted", zap.String("lesson", id))
	return nil
}

// UploadImage stores an image blob and returns its reference.
func (c *CurriculumService) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", domain.NewValidationError("file", "is required")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", domain.NewValidationError("file", "must be an image")
	}
	return c.blobs.Put(ctx, data, contentType)
}

// SeedDefaults stores the default modules and lessons once. It reports
// whether lessons were inserted.
func (c *CurriculumService) SeedDefaults(ctx context.Context) (bool, error) {
	for _, m := range domain.DefaultModules() {
		_, err := c.store.GetModule(ctx, m.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		if err := c.store.InsertModule(ctx, m); err != nil {
			return false, err
		}
	}

	lessons, err := c.store.ListLessons(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range lessons {
		if l.IsDefault {
			return false, nil
		}
	}
	for _, l := range domain.DefaultLessons() {
		if err := c.store.InsertLesson(ctx, l); err != nil {
			return false, err
		}
	}
	c.opts.log.Info("default curriculum seeded")
	return true, nil
}

// ExportData bundles the caller's progress with every lesson.
func (c *CurriculumService) ExportData(ctx context.Context) (Export, error) {
	studentID, err := c.identity.CurrentUserID(ctx)
	if err != nil {
		return Export{}, err
	}
	progress, err := c.store.GetProgress(ctx, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		progress, err = domain.Progress{StudentID: studentID, CompletedLessonIDs: []string{}}, nil
	}
	if err != nil {
		return Export{}, err
	}
	lessons, err := c.ListLessons(ctx)
	if err != nil {
		return Export{}, err
	}
	return Export{
		Progress:   progress,
		Lessons:    lessons,
		ExportDate: domain.Timestamp(c.opts.now()),
	}, nil
}

// RemoveStudent permanently deletes a student's progress record.
func (c *CurriculumService) RemoveStudent(ctx context.Context, studentID string) error {
	if err := c.store.DeleteProgress(ctx, studentID); err != nil {
		return err
	}
	c.opts.log.Warn("student removed", zap.String("student", studentID))
	return nil
}

func (c *CurriculumService) checkLessonInput(ctx context.Context, in LessonInput) error {
	if err := domain.Struct(in); err != nil {
		return err
	}
	if in.ModuleKey == "" {
		return nil
	}
	_, err := c.store.GetModule(ctx, in.ModuleKey)
	return err
}

func (c *CurriculumService) nextLessonOrder(ctx context.Context) (int, error) {
	lessons, err := c.store.ListLessons(ctx)
	if err != nil {
		return 0, err
	}
	maxOrder := 0
	for _, l := range lessons {
		if l.Order > maxOrder {
			maxOrder = l.Order
		}
	}
	return maxOrder + 1, nil
}

func (c *CurriculumService) resolveImages(ctx context.Context, lesson domain.Lesson) (domain.Lesson, error) {
	questions := make([]domain.Question, len(lesson.Questions))
	copy(questions, lesson.Questions)
	for i, q := range questions {
		if q.Image == nil || q.Image.BlobRef == "" || q.Image.URL != "" {
			continue
		}
		url, ok, err := c.blobs.URL(ctx, q.Image.BlobRef)
		if err != nil {
			return domain.Lesson{}, err
		}
		if ok {
			questions[i].Image = &domain.ImageRef{URL: url, BlobRef: q.Image.BlobRef}
		}
	}
	lesson.Questions = questions
	return lesson, nil
}

func (c *CurriculumService) invalidate(ctx context.Context, id string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, id); err != nil {
		c.opts.log.Warn("invalidate lesson cache", zap.String("lesson", id), zap.Error(err))
	}
}

func (c *CurriculumService) releaseBlobs(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := c.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, domain.ErrNotFound) {
			c.opts.log.Warn("release image blob", zap.String("blob", ref), zap.Error(err))
		}
	}
}

// unreferenced returns the refs in old that next no longer uses.
func unreferenced(old, next []string) []string {
	keep := make(map[string]struct{}, len(next))
	for _, ref := range next {
		keep[ref] = struct{}{}
	}
	var out []string
	for _, ref := range old {
		if _, ok := keep[ref]; !ok {
			out = append(out, ref)
			keep[ref] = struct{}{}
		}
	}
	return out
}

// SlugifyModuleKey lowercases input, keeps ASCII letters and digits, and
// truncates to 32 characters.
func SlugifyModuleKey(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			if b.Len() == maxModuleKeyLen {
				break
			}
		}
	}
	return b.String()
}

func trimModuleInput(in ModuleInput) ModuleInput {
	in.ModuleKey = strings.TrimSpace(in.ModuleKey)
	in.Code = strings.TrimSpace(in.Code)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ColorTheme = strings.TrimSpace(in.ColorTheme)
	in.IconKey = strings.TrimSpace(in.IconKey)
	return in
}

func trimLessonInput(in LessonInput) LessonInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Difficulty = strings.TrimSpace(in.Difficulty)
	in.ModuleKey = strings.TrimSpace(in.ModuleKey)
	questions := make([]domain.Question, len(in.Questions))
	for i, q := range in.Questions {
		q.Text = strings.TrimSpace(q.Text)
		q.Explanation = strings.TrimSpace(q.Explanation)
		questions[i] = q
	}
	in.Questions = questions
	return in
}
