package translations

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	loclv "github.com/go-playground/locales/lv"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
	"github.com/programme-lv/contest-client/translations/lv"
)

// Validator checks struct tags and reports failures in the configured language
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewValidator returns a validator for locale "en" or "lv".
// Field names come from the form tag, then the json tag.
func NewValidator(locale string) (*Validator, error) {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, loclv.New())

	if locale == "" {
		locale = "en"
	}
	trans, found := uni.GetTranslator(locale)
	if !found {
		return nil, fmt.Errorf("unsupported locale %q", locale)
	}

	var err error
	switch locale {
	case "lv":
		err = lv.RegisterDefaultTranslations(validate, trans)
	default:
		err = registerEnglish(validate, trans)
	}
	if err != nil {
		return nil, fmt.Errorf("register %s translations: %w", locale, err)
	}
	return &Validator{validate: validate, trans: trans}, nil
}

// registerEnglish adds messages for the cross-field tags on top of the
// library defaults
func registerEnglish(validate *validator.Validate, trans ut.Translator) error {
	if err := entrans.RegisterDefaultTranslations(validate, trans); err != nil {
		return err
	}
	overrides := map[string]string{
		"required_without": "{0} is required when {1} is not given",
		"excluded_with":    "{0} must not be given together with {1}",
	}
	for tag, text := range overrides {
		tag, text := tag, text
		err := validate.RegisterTranslation(tag, trans, func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field(), strings.ToLower(fe.Param()))
			return t
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Struct validates s. The returned error message lists every failed field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(v.trans))
	}
	return &Error{Messages: msgs, cause: err}
}

type Error struct {
	Messages []string
	cause    error
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *Error) Unwrap() error {
	return e.cause
}
