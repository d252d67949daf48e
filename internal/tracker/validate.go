package tracker

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sadopc/habitlab/internal/store"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = validate.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		return store.TimeOfDay(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("hhmm", validateClock)
	_ = validate.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		_, ok := LookupStrategy(v)
		return ok || v == StrategyOther
	})
}

// validateClock accepts a 24-hour "HH:MM" wall-clock time.
func validateClock(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if len(v) != 5 || v[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	h := int(v[0]-'0')*10 + int(v[1]-'0')
	m := int(v[3]-'0')*10 + int(v[4]-'0')
	return h <= 23 && m <= 59
}

// validateStruct runs the struct tags of v and converts failures into a
// validation Error keyed by field name.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newValidationError(map[string]string{"": err.Error()})
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return newValidationError(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "hhmm":
		return "must be a time in HH:MM form"
	case "timeofday":
		return "must be a time-of-day bucket"
	case "strategy":
		return "is not a known strategy"
	}
	return "is invalid"
}
