// Package sql compiles structured query specifications into dialect SQL.
package sql

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
)

// MaxIdentifierLength bounds table, column and alias names.
const MaxIdentifierLength = 128

// Operators accepted in filters.
var supportedOperators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	">": true, ">=": true, "<": true, "<=": true,
	"LIKE": true, "NOT LIKE": true,
	"IN": true, "NOT IN": true,
	"IS NULL": true, "IS NOT NULL": true,
	"BETWEEN": true,
}

var supportedAggregates = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func specValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return isValidIdentifier(fl.Field().String())
		})
		_ = v.RegisterValidation("sqlop", func(fl validator.FieldLevel) bool {
			return supportedOperators[normalizeOperator(fl.Field().String())]
		})
		_ = v.RegisterValidation("aggfunc", func(fl validator.FieldLevel) bool {
			return supportedAggregates[strings.ToUpper(fl.Field().String())]
		})
		_ = v.RegisterValidation("sortdir", func(fl validator.FieldLevel) bool {
			d := strings.ToUpper(fl.Field().String())
			return d == "ASC" || d == "DESC"
		})
		validate = v
	})
	return validate
}

// isValidIdentifier accepts any printable name up to MaxIdentifierLength.
// Identifiers are always quoted, so the check only rejects names no database would hold.
func isValidIdentifier(name string) bool {
	if strings.TrimSpace(name) == "" || len(name) > MaxIdentifierLength {
		return false
	}
	for _, r := range name {
		if r == 0 || unicode.IsControl(r) {
			return false
		}
	}
	for _, part := range strings.Split(name, ".") {
		if strings.TrimSpace(part) == "" {
			return false
		}
	}
	return true
}

func normalizeOperator(op string) string {
	return strings.Join(strings.Fields(strings.ToUpper(op)), " ")
}

// Validate checks a spec's shape and screens its filter values.
// All failures wrap apperrors.ErrInvalidQuery.
func Validate(spec *models.QuerySpec) error {
	if spec == nil {
		return fmt.Errorf("%w: empty query", apperrors.ErrInvalidQuery)
	}

	if err := specValidator().Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidQuery, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidQuery, err)
	}

	for _, f := range spec.Where {
		if err := checkFilterValue(f); err != nil {
			return err
		}
	}

	if flagged := CheckFilters(spec.Where); len(flagged) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidQuery, flagged[0].Error())
	}

	return nil
}

// checkFilterValue enforces the value shape each operator needs.
func checkFilterValue(f models.Filter) error {
	op := normalizeOperator(f.Operator)
	switch op {
	case "IS NULL", "IS NOT NULL":
		return nil
	case "IN", "NOT IN":
		if list, ok := f.Value.([]any); !ok || len(list) == 0 {
			return fmt.Errorf("%w: %s on %q needs a non-empty list", apperrors.ErrInvalidQuery, op, f.Column)
		}
	case "BETWEEN":
		if list, ok := f.Value.([]any); !ok || len(list) != 2 {
			return fmt.Errorf("%w: BETWEEN on %q needs exactly two values", apperrors.ErrInvalidQuery, f.Column)
		}
	default:
		switch f.Value.(type) {
		case nil:
			return fmt.Errorf("%w: %s on %q needs a value", apperrors.ErrInvalidQuery, op, f.Column)
		case []any, map[string]any:
			return fmt.Errorf("%w: %s on %q needs a single value", apperrors.ErrInvalidQuery, op, f.Column)
		}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "QuerySpec.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "identifier", "identifier|eq=*":
		return fmt.Sprintf("%s %q is not a valid identifier", field, fe.Value())
	case "sqlop":
		return fmt.Sprintf("%s %q is not a supported operator", field, fe.Value())
	case "aggfunc":
		return fmt.Sprintf("%s %q is not a supported aggregate (COUNT, SUM, AVG, MIN, MAX)", field, fe.Value())
	case "sortdir":
		return fmt.Sprintf("%s %q must be ASC or DESC", field, fe.Value())
	case "gte":
		return field + " must not be negative"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
