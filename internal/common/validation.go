package common

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// FieldError is one failed check on one input field.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	if e.Value == nil {
		return e.Field + " " + e.Message
	}
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// Rule checks a single field value; it returns nil when the value passes.
type Rule func(field string, value any) *FieldError

// Validator collects field errors across chained checks so callers can
// report every problem with a request at once.
type Validator struct {
	problems []FieldError
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Field(field string, value any, rules ...Rule) *Validator {
	for _, rule := range rules {
		if fe := rule(field, value); fe != nil {
			v.problems = append(v.problems, *fe)
		}
	}
	return v
}

// Check records message against field when ok is false.
func (v *Validator) Check(ok bool, field string, value any, message string) *Validator {
	if !ok {
		v.problems = append(v.problems, FieldError{Field: field, Value: value, Message: message})
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.problems) > 0 }

func (v *Validator) Errors() []FieldError { return v.problems }

// Err folds the collected problems into one INVALID_INPUT AppError.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	parts := make([]string, len(v.problems))
	for i, p := range v.problems {
		parts[i] = p.Error()
	}
	return NewAppError(CodeInvalidInput, strings.Join(parts, "; "), ErrInvalidInput)
}

// Required rejects nil values and blank strings.
func Required(field string, value any) *FieldError {
	blank := value == nil
	switch s := value.(type) {
	case string:
		blank = strings.TrimSpace(s) == ""
	case *string:
		blank = s == nil || strings.TrimSpace(*s) == ""
	}
	if blank {
		return &FieldError{Field: field, Message: "is required"}
	}
	return nil
}

// MaxLength rejects strings longer than n runes. Non-strings pass.
func MaxLength(n int) Rule {
	return func(field string, value any) *FieldError {
		s, ok := value.(string)
		if ok && utf8.RuneCountInString(s) > n {
			return &FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", n)}
		}
		return nil
	}
}

// OneOf rejects strings outside allowed.
func OneOf(allowed ...string) Rule {
	return func(field string, value any) *FieldError {
		s, _ := value.(string)
		if !slices.Contains(allowed, s) {
			return &FieldError{Field: field, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
		}
		return nil
	}
}
