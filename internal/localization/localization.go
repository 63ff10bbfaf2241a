// Package localization provides functionality for internationalization (i18n).
// It loads translation strings from JSON files and renders them with named
// placeholders such as {id} or {status}.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
)

//go:embed locales/*.json
var embedded embed.FS

// Fields are the named values substituted into a template.
type Fields map[string]any

// Localizer manages the translations for the application.
// It holds a map of languages, each with its own map of translation keys and values.
type Localizer struct {
	translations map[string]map[string]string
	fallback     string
	mu           sync.RWMutex
}

// NewLocalizer creates and returns a new Localizer instance.
// It loads all translations from the provided directory path.
// The directory should contain JSON files named with the language code (e.g., "uz.json").
func NewLocalizer(dir, fallback string) (*Localizer, error) {
	return NewLocalizerFS(os.DirFS(dir), ".", fallback)
}

// NewDefaultLocalizer loads the string tables compiled into the binary.
func NewDefaultLocalizer(fallback string) (*Localizer, error) {
	return NewLocalizerFS(embedded, "locales", fallback)
}

// NewLocalizerFS loads every *.json file in dir of fsys.
func NewLocalizerFS(fsys fs.FS, dir, fallback string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
		fallback:     fallback,
	}

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	if _, ok := l.translations[fallback]; !ok {
		return nil, fmt.Errorf("fallback language %q has no translation file", fallback)
	}
	return l, nil
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it falls back to the default
// language and finally to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != l.fallback {
		if fb, ok := l.translations[l.fallback]; ok {
			if value, ok := fb[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format renders key with named fields. Placeholders without a matching
// field are left untouched.
func (l *Localizer) Format(lang, key string, fields Fields) string {
	tmpl := l.GetString(lang, key)
	if len(fields) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(fields)*2)
	for name, value := range fields {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(value))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Has reports whether lang has its own translation table.
func (l *Localizer) Has(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.translations[lang]
	return ok
}

// Fallback returns the default language.
func (l *Localizer) Fallback() string { return l.fallback }
