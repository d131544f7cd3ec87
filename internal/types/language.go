package types

import "fmt"

type Language string

const (
	LanguageC      Language = "c"
	LanguageCPP    Language = "cpp"
	LanguagePython Language = "python"
	LanguagePDF    Language = "pdf"
)

var languageExtensions = map[Language]string{
	LanguageC:      ".c",
	LanguageCPP:    ".cpp",
	LanguagePython: ".py",
	LanguagePDF:    ".pdf",
}

func ParseLanguage(raw string) (Language, error) {
	l := Language(raw)
	if _, ok := languageExtensions[l]; !ok {
		return "", fmt.Errorf("unsupported language: %q", raw)
	}

	return l, nil
}

// Extension for the single `main` entry expected in standard-mode archives.
func (l Language) Extension() string {
	return languageExtensions[l]
}

func (l Language) String() string {
	return string(l)
}
