package security

import (
	"fmt"
	"regexp"
)

// Validation limits.
const (
	MaxLanguageLength = 64
	MaxPageSize       = 1000
)

// languageRegex matches language names such as "go", "c++" or "c_sharp".
var languageRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_+#-]*$`)

// ValidateLanguage accepts the empty string, which means detection from
// the path.
func ValidateLanguage(language string) error {
	if language == "" {
		return nil
	}
	if len(language) > MaxLanguageLength {
		return fieldError("language", fmt.Sprintf("language is longer than %d bytes", MaxLanguageLength))
	}
	if !languageRegex.MatchString(language) {
		return fieldError("language", "invalid language name "+fmt.Sprintf("%q", SanitizeForLog(language)))
	}
	return nil
}

// ValidatePage requires page >= 1.
func ValidatePage(page int) error {
	if page < 1 {
		return fieldError("page", "page must be at least 1")
	}
	return nil
}

// ValidatePageSize requires 1 <= pageSize <= MaxPageSize.
func ValidatePageSize(pageSize int) error {
	if pageSize < 1 || pageSize > MaxPageSize {
		return fieldError("page_size", fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize))
	}
	return nil
}

// ValidateRevision requires a revision number >= 0, 0 meaning the latest.
func ValidateRevision(field string, n int) error {
	if n < 0 {
		return fieldError(field, field+" must not be negative")
	}
	return nil
}

// GenerateRequestValidator validates a generation request.
type GenerateRequestValidator struct {
	Path     string
	Language string
}

func (v *GenerateRequestValidator) Validate() error {
	if err := ValidatePath(v.Path); err != nil {
		return err
	}
	return ValidateLanguage(v.Language)
}

// DiffRequestValidator validates the optional fields of a diff request.
type DiffRequestValidator struct {
	Name     string
	Language string
	Path     string
	From, To int
}

func (v *DiffRequestValidator) Validate() error {
	if v.Name != "" {
		if err := ValidatePath(v.Name); err != nil {
			return err
		}
	}
	if v.Path != "" {
		if err := ValidatePath(v.Path); err != nil {
			return err
		}
	}
	if err := ValidateLanguage(v.Language); err != nil {
		return err
	}
	if err := ValidateRevision("from", v.From); err != nil {
		return err
	}
	return ValidateRevision("to", v.To)
}
