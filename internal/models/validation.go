package models

import (
	"html"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9 _$-]+$`)
	textPolicy      = bluemonday.StrictPolicy()
)

// Validator returns the validator shared by models, handlers and echo.
// Field names in errors are the JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// cleanText strips markup from user supplied text. The result is plain
// text, so running it twice yields the same value.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
