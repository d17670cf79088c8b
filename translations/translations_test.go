package translations_test

import (
	"testing"

	"github.com/programme-lv/contest-client/subm"
	"github.com/programme-lv/contest-client/translations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorEnglish(t *testing.T) {
	v, err := translations.NewValidator("en")
	require.NoError(t, err)

	err = v.Struct(subm.Request{Code: "print(1)", ContestID: "C1", LanguageID: 71})
	require.Error(t, err)
	assert.Equal(t, "case_id is a required field", err.Error())

	err = v.Struct(subm.Request{
		Code:       "print(1)",
		File:       &subm.SourceFile{Name: "a.py", Content: []byte("print(1)")},
		CaseID:     "P1",
		ContestID:  "C1",
		LanguageID: 71,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code must not be given together with file")

	err = v.Struct(subm.Request{CaseID: "P1", ContestID: "C1", LanguageID: 71})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code is required when file is not given")

	var verr *translations.Error
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Messages, 1)

	assert.NoError(t, v.Struct(subm.Request{Code: "print(1)", CaseID: "P1", ContestID: "C1", LanguageID: 71}))
	assert.NoError(t, v.Struct(subm.Request{
		File:       &subm.SourceFile{Name: "a.py", Content: []byte("print(1)")},
		CaseID:     "P1",
		ContestID:  "C1",
		LanguageID: 71,
	}))
}

func TestValidatorLatvian(t *testing.T) {
	v, err := translations.NewValidator("lv")
	require.NoError(t, err)

	err = v.Struct(subm.Request{Code: "print(1)", CaseID: "P1", LanguageID: 71})
	require.Error(t, err)
	assert.Equal(t, "contest_id ir obligāts lauks!", err.Error())
}

func TestValidatorUnknownLocale(t *testing.T) {
	_, err := translations.NewValidator("xx")
	assert.Error(t, err)
}
