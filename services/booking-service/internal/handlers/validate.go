package handlers

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/staffbook/services/booking-service/internal/model"
)

// Validator wraps validator/v10 with the booking field rules. Field names in errors are the
// JSON names.
type Validator struct {
	v *validator.Validate
}

func NewValidator(granularity time.Duration) *Validator {
	step := int64(granularity / time.Minute)
	if step <= 0 {
		step = 15
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(booking.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := model.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("source", func(fl validator.FieldLevel) bool {
		_, err := model.ParseSource(fl.Field().String())
		return err == nil
	})
	// Durations must land on the slot grid.
	_ = v.RegisterValidation("granularity", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64:
		default:
			return false
		}
		val := fl.Field().Int()
		return val > 0 && val%step == 0
	})

	return &Validator{v: v}
}

func (v *Validator) Struct(s any) error {
	return v.v.Struct(s)
}

// validationDetails maps each failing field to the tag it failed. It returns nil for errors that
// are not validation errors.
func validationDetails(err error) map[string]string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
