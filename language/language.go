// Package language holds the languages a server can enable and the alphabet
// each of them accepts for chain words.
package language

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	xlanguage "golang.org/x/text/language"
)

// English is the default language. Lookups for it use the accent-folded word.
const English = "en"

var ErrUnknownLanguage = errors.New("unknown language")

// Language describes a supported language.
type Language struct {
	Code    string
	Name    string
	pattern *regexp.Regexp
}

// Matches reports whether word is spelled with this language's alphabet.
func (l Language) Matches(word string) bool {
	return l.pattern.MatchString(word)
}

// words are at least two letters; hyphens may only appear inside the word
func wordPattern(start, middle, end string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^[%s](?:-|[%s])*[%s]$`, start, middle, end))
}

func alphabet(letters string) *regexp.Regexp {
	set := "a-z" + letters
	return wordPattern(set, set, set)
}

var (
	latin         = alphabet("")
	french        = alphabet("àâæçéèêëîïôœùûüÿ")
	german        = wordPattern("a-zäöü", "a-zäöüß", "a-zäöüß")
	dutch         = alphabet("éèëç")
	spanish       = alphabet("áéíóúüñ")
	portuguese    = alphabet("áâãàçéêíóôõú")
	italian       = alphabet("àèéìíîòóùú")
	northGermanic = alphabet("æøå")
	swedish       = regexp.MustCompile(`^[a-zåäö][a-zåäö]*[a-zåäö]$`)
	icelandic     = wordPattern("a-záéíóúýþæö", "a-záéíóúýþæöð", "a-záéíóúýþæöð")
	polish        = alphabet("ąćęłńóśźż")
	czech         = alphabet("áčďéěíňóřšťůýž")
	southSlavic   = alphabet("čćđšž")
	hungarian     = alphabet("áéíóöőúüű")
	romanian      = alphabet("ăâîșț")
	albanian      = alphabet("ëç")
	irish         = alphabet("áéíóú")
	gaelic        = alphabet("àèìòù")
	welsh         = alphabet("âêîôûŷ")
	maltese       = alphabet("ċġħż")
	turkish       = alphabet("çğıöşü")
)

var registry = map[string]Language{}

func register(code, name string, pattern *regexp.Regexp) {
	registry[code] = Language{Code: code, Name: name, pattern: pattern}
}

func init() {
	register(English, "English", latin)
	register("fr", "French", french)
	register("de", "German", german)
	register("nl", "Dutch", dutch)
	register("lb", "Luxembourgish", german)
	register("es", "Spanish", spanish)
	register("pt", "Portuguese", portuguese)
	register("it", "Italian", italian)
	register("ca", "Catalan", french)
	register("gl", "Galician", french)
	register("da", "Danish", northGermanic)
	register("no", "Norwegian", northGermanic)
	register("sv", "Swedish", swedish)
	register("is", "Icelandic", icelandic)
	register("fo", "Faroese", icelandic)
	register("pl", "Polish", polish)
	register("cs", "Czech", czech)
	register("sk", "Slovak", czech)
	register("sl", "Slovene", southSlavic)
	register("hr", "Croatian", southSlavic)
	register("bs", "Bosnian", southSlavic)
	register("sr", "Serbian", southSlavic)
	register("hu", "Hungarian", hungarian)
	register("ro", "Romanian", romanian)
	register("sq", "Albanian", albanian)
	register("ga", "Irish", irish)
	register("gd", "Scottish Gaelic", gaelic)
	register("cy", "Welsh", welsh)
	register("br", "Breton", french)
	register("eu", "Basque", spanish)
	register("mt", "Maltese", maltese)
	register("tr", "Turkish", turkish)
}

// Canonical turns user input such as "EN", "en-GB" or "deu" into the base
// two-letter code used as a key everywhere else.
func Canonical(code string) (string, error) {
	tag, err := xlanguage.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// Lookup returns the supported language for code.
func Lookup(code string) (Language, error) {
	canonical, err := Canonical(code)
	if err != nil {
		return Language{}, err
	}
	lang, ok := registry[canonical]
	if !ok {
		return Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return lang, nil
}

// Resolve maps codes to languages, dropping unsupported ones and duplicates
// while keeping the configured order.
func Resolve(codes []string) []Language {
	seen := make(map[string]bool, len(codes))
	langs := make([]Language, 0, len(codes))
	for _, code := range codes {
		lang, err := Lookup(code)
		if err != nil || seen[lang.Code] {
			continue
		}
		seen[lang.Code] = true
		langs = append(langs, lang)
	}
	return langs
}

// Supported lists every registered language code in alphabetical order.
func Supported() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
