package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound matches every NotFoundError via errors.Is.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict matches every ConflictError via errors.Is.
	ErrConflict = errors.New("entity is not in a state that allows this transition")
)

// Entity names used in error payloads and audit records.
const (
	EntityUpgradeApplication = "upgrade_application"
	EntityAssignment         = "assignment"
	EntityStudentReferral    = "student_referral"
	EntityProvider           = "provider"
	EntityTutor              = "tutor"
)

// ValidationError reports a caller-correctable problem with a single field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every offending field of a request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, item := range e {
		parts = append(parts, item.Error())
	}
	return strings.Join(parts, "; ")
}

// Has reports whether a field failed validation.
func (e ValidationErrors) Has(field string) bool {
	for _, item := range e {
		if item.Field == field {
			return true
		}
	}
	return false
}

// ConflictError reports a transition attempted from the wrong state.
type ConflictError struct {
	Entity       string `json:"entity"`
	EntityID     uint   `json:"entity_id"`
	CurrentState string `json:"current_state"`
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %d is already %s", strings.ReplaceAll(e.Entity, "_", " "), e.EntityID, e.CurrentState)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity   string `json:"entity"`
	EntityID uint   `json:"entity_id"`
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", strings.ReplaceAll(e.Entity, "_", " "), e.EntityID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationDetails flattens any validation error into field entries.
// The boolean is false when err is not a validation failure.
func ValidationDetails(err error) ([]ValidationError, bool) {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many, true
	}
	var single ValidationError
	if errors.As(err, &single) {
		return []ValidationError{single}, true
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		return fromFieldErrors(fieldErrors), true
	}
	return nil, false
}

// IsValidationError reports whether err is caller-correctable input.
func IsValidationError(err error) bool {
	_, ok := ValidationDetails(err)
	return ok
}

// NewValidator builds a validator reporting JSON field names.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func validationFailures(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		return fromFieldErrors(fieldErrors)
	}
	return ValidationErrors{{Message: err.Error()}}
}

func fromFieldErrors(fieldErrors validator.ValidationErrors) ValidationErrors {
	result := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		result = append(result, ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	return result
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
