package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/suPer8Hu/germanleap/internal/models"
)

var registerOnce sync.Once

// RegisterValidators adds the `level` and `teaching_mode` binding tags to
// gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// report json names in errors
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("level", func(fl validator.FieldLevel) bool {
			return models.Level(fl.Field().String()).Valid()
		})
		// "" is the same as an absent mode
		_ = v.RegisterValidation("teaching_mode", func(fl validator.FieldLevel) bool {
			m := fl.Field().String()
			return m == "" || models.TeachingMode(m).Valid()
		})
	})
}

// bindMessage renders a bind error as one human-readable line.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid json"
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "level":
			parts = append(parts, fmt.Sprintf("%s must be one of A1, A2, B1, B2", field))
		case "teaching_mode":
			modes := make([]string, len(models.TeachingModes))
			for i, m := range models.TeachingModes {
				modes[i] = string(m)
			}
			parts = append(parts, fmt.Sprintf("%s must be one of %s", field, strings.Join(modes, ", ")))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
