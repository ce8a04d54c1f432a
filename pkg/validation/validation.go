// Package validation checks request structs against their `validate` tags and reports failures
// as translated, per-field messages.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// ErrTranslatorNotFound indicates the English translator could not be loaded.
var ErrTranslatorNotFound = errors.New("translator not found")

// Error maps JSON field names to human readable failure messages.
type Error map[string]string

// Field returns an Error holding a single field failure.
func Field(name, msg string) Error {
	return Error{name: msg}
}

// Fieldf is Field with a formatted message.
func Fieldf(name, format string, args ...any) Error {
	return Error{name: fmt.Sprintf(format, args...)}
}

func (e Error) Error() string {
	if len(e) == 0 {
		return "validation error"
	}
	b, err := json.Marshal(map[string]string(e))
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Fields returns the failing field names in sorted order.
func (e Error) Fields() []string {
	names := make([]string, 0, len(e))
	for k := range e {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Merge copies the entries of other into e; the first message recorded for a field wins.
func (e Error) Merge(other Error) {
	for k, v := range other {
		if _, ok := e[k]; !ok {
			e[k] = v
		}
	}
}

// OrNil returns nil for an empty Error, so callers can build an Error incrementally and return
// it unconditionally.
func (e Error) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Validator validates structs using go-playground/validator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New constructs a Validator with English translations and Courier's custom rules.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonName)

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	trans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}
	if err := registerCustom(validate, trans); err != nil {
		return nil, err
	}

	return &Validator{validate: validate, translator: trans}, nil
}

// Validate validates a struct, returning an Error when any field fails.
func (v *Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Error, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if _, ok := out[name]; !ok {
			out[name] = fe.Translate(v.translator)
		}
	}
	return out
}

// jsonName reports struct fields by their JSON names.
func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

type customRule struct {
	tag  string
	text string
	fn   validator.Func
}

var customRules = []customRule{
	{
		tag:  "notnan",
		text: "{0} must be a number",
		fn: func(fl validator.FieldLevel) bool {
			switch fl.Field().Kind() {
			case reflect.Float32, reflect.Float64:
				return !math.IsNaN(fl.Field().Float())
			}
			return true
		},
	},
	{
		tag:  "headername",
		text: "{0} must be a valid header name",
		fn: func(fl validator.FieldLevel) bool {
			return ValidHeaderName(fl.Field().String())
		},
	},
}

func registerCustom(validate *validator.Validate, trans ut.Translator) error {
	for _, r := range customRules {
		if err := validate.RegisterValidation(r.tag, r.fn); err != nil {
			return err
		}
		err := validate.RegisterTranslation(r.tag, trans,
			func(ut ut.Translator) error {
				return ut.Add(r.tag, r.text, false)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, _ := ut.T(fe.Tag(), fe.Field())
				return t
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidHeaderName returns true if name is a non-empty RFC 5322 field name: printable US-ASCII
// excluding colon.
func ValidHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 33 || c > 126 || c == ':' {
			return false
		}
	}
	return true
}
