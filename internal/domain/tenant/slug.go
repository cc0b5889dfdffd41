package tenant

import (
	"strings"
	"unicode"

	"github.com/noro/control-plane/internal/domain/shared"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 63

var slugNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// DeriveSlug produces a canonical URL-safe slug from a display name or
// caller-supplied hint: diacritics stripped, lower-cased, runs of
// non-alphanumerics collapsed to single hyphens.
func DeriveSlug(input string) (string, error) {
	stripped, _, err := transform.String(slugNormalizer, input)
	if err != nil {
		// Fall back to the raw input; non-ASCII runes are dropped below.
		stripped = input
	}

	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "", shared.NewDomainError("INVALID_SLUG", "Cannot derive a slug from the given input")
	}
	return slug, nil
}

// ValidateSlug checks that a slug is already in canonical form
func ValidateSlug(slug string) error {
	if slug == "" {
		return shared.NewDomainError("INVALID_SLUG", "Slug cannot be empty")
	}
	if len(slug) > maxSlugLength {
		return shared.NewDomainError("INVALID_SLUG", "Slug cannot exceed 63 characters")
	}
	derived, err := DeriveSlug(slug)
	if err != nil {
		return err
	}
	if derived != slug {
		return shared.NewDomainError("INVALID_SLUG", "Slug must be lower-case alphanumerics separated by hyphens")
	}
	return nil
}
