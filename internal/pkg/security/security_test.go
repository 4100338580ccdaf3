package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple", "file.txt", false},
		{"nested", "src/main.go", false},
		{"absolute", "/home/u/src/main.go", false},
		{"dotdot", "../file.txt", false},
		{"unicode", "src/café.py", false},
		{"empty", "", true},
		{"null byte", "file\x00.txt", true},
		{"newline", "a\nb.txt", true},
		{"invalid utf8", "a\xff.txt", true},
		{"too long", strings.Repeat("a", MaxPathLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsValidation(err), "got %v", err)
		})
	}
}

func TestValidateLanguage(t *testing.T) {
	for _, l := range []string{"", "go", "python", "c++", "c_sharp", "f#"} {
		assert.NoError(t, ValidateLanguage(l), l)
	}
	for _, l := range []string{"Go", "-go", "go lang", strings.Repeat("a", MaxLanguageLength+1)} {
		assert.Error(t, ValidateLanguage(l), l)
	}
}

func TestPagination(t *testing.T) {
	assert.NoError(t, ValidatePage(1))
	assert.Error(t, ValidatePage(0))
	assert.NoError(t, ValidatePageSize(1))
	assert.NoError(t, ValidatePageSize(MaxPageSize))
	assert.Error(t, ValidatePageSize(0))
	assert.Error(t, ValidatePageSize(MaxPageSize+1))
}

func TestRequestValidators(t *testing.T) {
	assert.NoError(t, (&GenerateRequestValidator{Path: "a.go", Language: "go"}).Validate())
	assert.Error(t, (&GenerateRequestValidator{Language: "go"}).Validate())

	assert.NoError(t, (&DiffRequestValidator{}).Validate())
	assert.NoError(t, (&DiffRequestValidator{Path: "a.go", From: 1, To: 2}).Validate())
	assert.Error(t, (&DiffRequestValidator{Path: "a.go", From: -1}).Validate())
	assert.Error(t, (&DiffRequestValidator{Name: "a\x00"}).Validate())
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"a\nb", "a\\nb"},
		{"a\r\nb", "a\\r\\nb"},
		{"tab\there", "tab\\there"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeForLog(tt.in))
	}
	assert.Equal(t, "aaaaa...", SanitizeForLogWithLength("aaaaaaaaaa", 5))
}
