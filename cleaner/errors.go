package cleaner

import "errors"

var (
	// ErrInputNotFound indicates the input corpus is absent or empty.
	ErrInputNotFound = errors.New("cleaner: input corpus not found or empty")
	// ErrUnsupportedLanguage indicates no stopword/lemmatization resources
	// are configured for the requested language.
	ErrUnsupportedLanguage = errors.New("cleaner: unsupported language")
)
