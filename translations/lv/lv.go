package lv

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

type message struct {
	tag  string
	text string
	// param is passed as {1} when set
	param bool
}

var messages = []message{
	{tag: "required", text: "{0} ir obligāts lauks!"},
	{tag: "required_without", text: "{0} ir obligāts, ja nav norādīts {1}!", param: true},
	{tag: "excluded_with", text: "{0} nedrīkst norādīt kopā ar {1}!", param: true},
	{tag: "gt", text: "{0} jābūt lielākam par {1}!", param: true},
	{tag: "min", text: "{0} nedrīkst būt tukšs!"},
}

func RegisterDefaultTranslations(validate *validator.Validate, trans ut.Translator) error {
	for _, m := range messages {
		m := m
		err := validate.RegisterTranslation(m.tag, trans, func(ut ut.Translator) error {
			return ut.Add(m.tag, m.text, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			params := []string{fe.Field()}
			if m.param {
				params = append(params, fe.Param())
			}
			t, _ := ut.T(m.tag, params...)
			return t
		})
		if err != nil {
			return err
		}
	}
	return nil
}
