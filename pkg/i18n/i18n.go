// Package i18n formats user-facing strings from embedded catalogs.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var catalogs embed.FS

// Fallback is the language used for keys missing from the selected catalog.
var Fallback = language.English

// Localizer resolves keys against one language, falling back to English.
// Immutable
type Localizer struct {
	tag      language.Tag
	strings  map[string]string
	fallback map[string]string
}

var placeholder = regexp.MustCompile(`{{\s*([A-Za-z0-9_]+)\s*}}`)

// New returns a Localizer for the closest available match to locale.
func New(locale string) (*Localizer, error) {
	all, err := loadCatalogs()
	if err != nil {
		return nil, err
	}

	tags := make([]language.Tag, 0, len(all))
	tags = append(tags, Fallback)
	for tag := range all {
		if tag != Fallback {
			tags = append(tags, tag)
		}
	}

	want := Fallback
	if locale != "" {
		if want, err = language.Parse(locale); err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
		}
	}
	_, idx, _ := language.NewMatcher(tags).Match(want)
	chosen := tags[idx]

	return &Localizer{
		tag:      chosen,
		strings:  all[chosen],
		fallback: all[Fallback],
	}, nil
}

// Must is New that panics on error; meant for package-level defaults.
func Must(locale string) *Localizer {
	l, err := New(locale)
	if err != nil {
		panic(err)
	}
	return l
}

// Language returns the language actually selected.
func (l *Localizer) Language() language.Tag {
	return l.tag
}

// T formats key with params. Unknown keys return the key itself and unknown
// placeholders are left as written.
func (l *Localizer) T(key string, params map[string]string) string {
	tmpl, ok := l.strings[key]
	if !ok {
		if tmpl, ok = l.fallback[key]; !ok {
			return key
		}
	}
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := params[name]; ok {
			return v
		}
		return m
	})
}

func loadCatalogs() (map[language.Tag]map[string]string, error) {
	entries, err := catalogs.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	out := make(map[language.Tag]map[string]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		tag, err := language.Parse(strings.TrimSuffix(name, path.Ext(name)))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		raw, err := catalogs.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, err
		}
		var strs map[string]string
		if err := json.Unmarshal(raw, &strs); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		out[tag] = strs
	}
	if _, ok := out[Fallback]; !ok {
		return nil, fmt.Errorf("missing %s catalog", Fallback)
	}
	return out, nil
}
