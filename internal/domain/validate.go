package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(questionRules, Question{})
	return v
}

// questionRules checks the correct index against the option list.
func questionRules(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		sl.ReportError(q.CorrectIndex, "correctIndex", "CorrectIndex", "inrange", "")
	}
	if q.Image != nil && q.Image.URL != "" && q.Image.BlobRef != "" {
		sl.ReportError(q.Image, "image", "Image", "oneof_ref", "")
	}
}

// Validate checks a module record.
func (m Module) Validate() error { return check(m) }

// Validate checks a lesson record, including every embedded question.
func (l Lesson) Validate() error { return check(l) }

// Validate checks an attempt record.
func (a Attempt) Validate() error { return check(a) }

// Validate checks a progress record.
func (p Progress) Validate() error { return check(p) }

// Validate checks a single question.
func (q Question) Validate() error { return check(q) }

// Struct validates any tagged input struct and converts failures to *ValidationError.
func Struct(v any) error { return check(v) }

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fieldPath(fe.Namespace())] = describe(fe)
	}
	return out
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "unique":
		return "must not contain duplicates"
	case "url":
		return "must be a valid URL"
	case "inrange":
		return "must index an existing option"
	case "oneof_ref":
		return "must set either url or blobRef, not both"
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}
