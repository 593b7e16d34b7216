// services/card_code.go
package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const cardCodeSlugMax = 12

// NewCardCode builds a display code like "AG-ANA-RUNS-3F9C" from a creator handle.
func NewCardCode(handle string) string {
	s := strings.ToUpper(slug.Make(handle))
	if len(s) > cardCodeSlugMax {
		s = strings.TrimRight(s[:cardCodeSlugMax], "-")
	}
	if s == "" {
		s = "CREATOR"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "AG-" + s + "-" + suffix
}

// NormalizeHandle strips a leading @ and whitespace and lowercases.
func NormalizeHandle(handle string) string {
	h := strings.TrimSpace(handle)
	h = strings.TrimLeft(h, "@")
	return strings.ToLower(strings.TrimSpace(h))
}

// titleCase builds a fresh Caser per call; Casers are not safe to share.
func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}
