package planglist

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ProgrLang is a language accepted by the judge. ID is the judge's
// numeric language identifier, sent as language_id on submit.
type ProgrLang struct {
	ID           int
	ShortName    string
	FullName     string
	CodeFilename string
	MonacoId     string
	Enabled      bool
}

func ListProgrLangs() []ProgrLang {
	return []ProgrLang{
		{ID: 50, ShortName: "c", FullName: "C (GCC 9.2.0)", CodeFilename: "main.c", MonacoId: "c", Enabled: true},
		{ID: 54, ShortName: "cpp", FullName: "C++ (GCC 9.2.0)", CodeFilename: "main.cpp", MonacoId: "cpp", Enabled: true},
		{ID: 51, ShortName: "csharp", FullName: "C# (Mono 6.6.0.161)", CodeFilename: "Main.cs", MonacoId: "csharp", Enabled: false},
		{ID: 60, ShortName: "go", FullName: "Go (1.13.5)", CodeFilename: "main.go", MonacoId: "go", Enabled: true},
		{ID: 62, ShortName: "java", FullName: "Java (OpenJDK 13.0.1)", CodeFilename: "Main.java", MonacoId: "java", Enabled: true},
		{ID: 63, ShortName: "js", FullName: "JavaScript (Node.js 12.14.0)", CodeFilename: "main.js", MonacoId: "javascript", Enabled: true},
		{ID: 71, ShortName: "python", FullName: "Python (3.8.1)", CodeFilename: "main.py", MonacoId: "python", Enabled: true},
		{ID: 73, ShortName: "rust", FullName: "Rust (1.40.0)", CodeFilename: "main.rs", MonacoId: "rust", Enabled: false},
	}
}

func GetProgrLangById(id int) (ProgrLang, error) {
	for _, lang := range ListProgrLangs() {
		if lang.ID == id {
			return lang, nil
		}
	}
	return ProgrLang{}, ErrInvalidProgLang().
		SetDebug(fmt.Errorf("unknown language id %d", id))
}

// Resolve accepts either the numeric id or the short name ("cpp", "java").
// Disabled languages are rejected.
func Resolve(s string) (ProgrLang, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	var (
		lang ProgrLang
		err  error
	)
	if id, convErr := strconv.Atoi(s); convErr == nil {
		lang, err = GetProgrLangById(id)
	} else {
		err = ErrInvalidProgLang().SetDebug(fmt.Errorf("unknown language %q", s))
		for _, l := range ListProgrLangs() {
			if l.ShortName == s {
				lang, err = l, nil
				break
			}
		}
	}
	if err != nil {
		return ProgrLang{}, err
	}
	if !lang.Enabled {
		return ProgrLang{}, ErrInvalidProgLang().
			SetDebug(fmt.Errorf("language %q is disabled", lang.ShortName))
	}
	return lang, nil
}

// GuessByFilename picks the enabled language whose code file has the same extension
func GuessByFilename(name string) (ProgrLang, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ProgrLang{}, false
	}
	for _, l := range ListProgrLangs() {
		if l.Enabled && strings.ToLower(filepath.Ext(l.CodeFilename)) == ext {
			return l, true
		}
	}
	return ProgrLang{}, false
}

// DisplayName is FullName for known ids and the bare number otherwise
func DisplayName(id int) string {
	lang, err := GetProgrLangById(id)
	if err != nil {
		return strconv.Itoa(id)
	}
	return lang.FullName
}
