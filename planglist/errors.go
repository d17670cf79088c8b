package planglist

import (
	"errors"
	"net/http"

	"github.com/programme-lv/contest-client/srvcerror"
)

const ErrCodeInvalidProgLang = "invalid_programming_language"

var invalidProgLangMsg = map[string]string{
	"en": "Invalid programming language",
	"lv": "Nederīga programmēšanas valoda",
}

func ErrInvalidProgLang() *srvcerror.Error {
	return srvcerror.New(
		ErrCodeInvalidProgLang,
		invalidProgLangMsg["en"],
	).SetHttpStatusCode(http.StatusBadRequest)
}

// Localize rewrites the message of an invalid language error for locale.
// Other errors and unknown locales are returned unchanged.
func Localize(err error, locale string) error {
	var srvcErr *srvcerror.Error
	if !errors.As(err, &srvcErr) || srvcErr.ErrorCode() != ErrCodeInvalidProgLang {
		return err
	}
	msg, ok := invalidProgLangMsg[locale]
	if !ok {
		return err
	}
	return srvcErr.WithMessage(msg)
}
