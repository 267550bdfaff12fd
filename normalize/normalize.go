// Package normalize canonicalizes raw chat input into the two forms the
// game works with: an accent-preserving lowercase form for chain letters and
// an accent-folded form for matching and default-language lookups.
package normalize

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wfunc/wordchain/language"
)

var (
	ErrMalformedInput = errors.New("malformed input")
	ErrEmpty          = errors.New("empty input")
	ErrMultipleTokens = errors.New("input has more than one token")
	ErrCommand        = errors.New("input is a command")
	ErrAlphabet       = errors.New("input is outside the allowed alphabet")
)

// Word is a canonicalized submission.
type Word struct {
	Raw    string
	Lower  string
	Folded string
}

// AccentFolded reports whether folding changed the word. Such words skip the
// generic blacklist, whose entries are plain ASCII.
func (w Word) AccentFolded() bool {
	return w.Folded != w.Lower
}

// First returns the first letter of the accent-preserving form.
func (w Word) First() rune {
	r, _ := utf8.DecodeRuneInString(w.Lower)
	return r
}

// Last returns the last letter of the accent-preserving form.
func (w Word) Last() rune {
	r, _ := utf8.DecodeLastRuneInString(w.Lower)
	return r
}

// LookupForm is the spelling sent to the lexicon for lang.
func (w Word) LookupForm(lang string) string {
	if lang == language.English {
		return w.Folded
	}
	return w.Lower
}

// Normalizer turns raw text into Words. It is safe for concurrent use.
type Normalizer struct {
	commandPrefix string
}

func NewNormalizer(commandPrefix string) *Normalizer {
	return &Normalizer{commandPrefix: commandPrefix}
}

// Canonicalize trims, lowercases and folds raw. It rejects empty input,
// multi-token input and commands.
func (n *Normalizer) Canonicalize(raw string) (Word, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Word{}, malformed(ErrEmpty)
	}
	if n.commandPrefix != "" && strings.HasPrefix(trimmed, n.commandPrefix) {
		return Word{}, malformed(ErrCommand)
	}
	if strings.IndexFunc(trimmed, unicode.IsSpace) >= 0 {
		return Word{}, malformed(ErrMultipleTokens)
	}

	lower := Lower(trimmed)
	return Word{Raw: raw, Lower: lower, Folded: Fold(lower)}, nil
}

// Validate checks the word against the alphabets of the enabled languages.
// Either spelling may match: "cafe" is fine for an English-only server even
// when typed as "café".
func (n *Normalizer) Validate(w Word, langs []language.Language) error {
	for _, lang := range langs {
		if lang.Matches(w.Lower) || lang.Matches(w.Folded) {
			return nil
		}
	}
	return malformed(ErrAlphabet)
}

// Normalize runs Canonicalize and Validate.
func (n *Normalizer) Normalize(raw string, langs []language.Language) (Word, error) {
	w, err := n.Canonicalize(raw)
	if err != nil {
		return Word{}, err
	}
	if err := n.Validate(w, langs); err != nil {
		return Word{}, err
	}
	return w, nil
}

func malformed(cause error) error {
	return errors.Join(ErrMalformedInput, cause)
}

// Lower case-folds s without touching accents.
func Lower(s string) string {
	return cases.Lower(xlanguage.Und).String(norm.NFC.String(s))
}

// Fold lowercases s and strips combining marks. Letters without a
// decomposition (ß, æ, ø, ł) are kept as they are.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, Lower(s))
	if err != nil {
		return Lower(s)
	}
	return folded
}

// IsEnglishAlphabet reports whether every rune of s is an ASCII letter or a hyphen.
func IsEnglishAlphabet(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}
	return true
}
