package upload

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{"pdf", "docx", "txt", "png", "jpg", "jpeg"}

// Validator decides which uploads are accepted, by file extension only.
type Validator struct {
	allowed map[string]struct{}
}

func NewValidator(extensions []string) *Validator {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	return &Validator{allowed: allowed}
}

// IsAllowed is true iff filename has a dot and the lowercased suffix after
// the last dot is on the allow-list.
func (v *Validator) IsAllowed(filename string) bool {
	ext, ok := Extension(filename)
	if !ok {
		return false
	}
	_, allowed := v.allowed[ext]
	return allowed
}

// Extension returns the lowercased suffix after the last dot.
func Extension(filename string) (string, bool) {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return "", false
	}
	return strings.ToLower(filename[i+1:]), true
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

const fallbackFilename = "upload"

// SanitizeFilename reduces a client supplied name to a safe single path
// component: ASCII only, no separators, no leading dots.
func SanitizeFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	s := b.String()
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")
	if s == "" {
		return fallbackFilename
	}
	return s
}
