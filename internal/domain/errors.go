package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error classes. Every error returned by the service wraps exactly one of these
// so callers can classify it with errors.Is.
var (
	// ErrUnauthenticated is returned when no identity is attached to the request.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the caller does not own the addressed record.
	ErrForbidden = errors.New("not authorized")
	// ErrNotFound is returned when a referenced record is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict is returned when an operation would break a cross-record rule.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for malformed input or records.
	ErrValidation = errors.New("validation failed")
)

var (
	ErrLessonNotFound   = fmt.Errorf("lesson %w", ErrNotFound)
	ErrModuleNotFound   = fmt.Errorf("module %w", ErrNotFound)
	ErrAttemptNotFound  = fmt.Errorf("attempt %w", ErrNotFound)
	ErrProgressNotFound = fmt.Errorf("progress %w", ErrNotFound)
	ErrSessionNotFound  = fmt.Errorf("quiz session %w", ErrNotFound)
	ErrBlobNotFound     = fmt.Errorf("blob %w", ErrNotFound)
	ErrTermNotFound     = fmt.Errorf("glossary term %w", ErrNotFound)

	// ErrNoSelection is returned when checking a question that has no answer selected.
	ErrNoSelection = fmt.Errorf("no answer selected: %w", ErrInvalidState)
	// ErrAnswerLocked is returned when changing the answer of an already checked question.
	ErrAnswerLocked = fmt.Errorf("answer already checked: %w", ErrInvalidState)
	// ErrNotCurrentQuestion is returned when selecting for a question other than the current one.
	ErrNotCurrentQuestion = fmt.Errorf("question is not the current question: %w", ErrInvalidState)
	// ErrNotChecked is returned when advancing past a question that has not been checked.
	ErrNotChecked = fmt.Errorf("current question not checked: %w", ErrInvalidState)
	// ErrQuestionNotReached is returned when navigating past the furthest question reached.
	ErrQuestionNotReached = fmt.Errorf("question not reached yet: %w", ErrInvalidState)
	// ErrWrongPhase is returned when a transition is not allowed in the session's phase.
	ErrWrongPhase = fmt.Errorf("transition not allowed in this phase: %w", ErrInvalidState)
	// ErrInvalidLessonState is returned when finishing a lesson that has no questions.
	ErrInvalidLessonState = fmt.Errorf("lesson has no questions: %w", ErrInvalidState)

	ErrModuleInUse    = fmt.Errorf("module is referenced by lessons: %w", ErrConflict)
	ErrModuleExists   = fmt.Errorf("module key already exists: %w", ErrConflict)
	ErrModuleReserved = fmt.Errorf("module key is reserved: %w", ErrConflict)
	ErrLessonExists   = fmt.Errorf("lesson id already exists: %w", ErrConflict)
)

// ValidationError lists the offending fields of a rejected record or input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
