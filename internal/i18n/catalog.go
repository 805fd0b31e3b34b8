// Package i18n renders user-visible strings from embedded YAML catalogs.
//
// Catalog files live under locales/<locale>/<namespace>.yaml. Lookups fall
// back from the requested locale to its base language, then to BaseLocale.
// A key missing everywhere renders as the key itself.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every key must exist in.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds every loaded locale and implements command.MessageService.
type Bundle struct {
	locales map[string]map[string]string
	tags    map[string]language.Tag
	builder *catalog.Builder
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads every locales/*/*.yaml file in fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{
		locales: make(map[string]map[string]string),
		tags:    make(map[string]language.Tag),
		builder: catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale))),
	}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := b.add(path, file); err != nil {
			return nil, err
		}
	}
	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return b, nil
}

func (b *Bundle) add(path string, file catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", path)
	}
	if fromPath := filepath.Base(filepath.Dir(path)); locale != fromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, locale, fromPath)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale tag %q: %w", path, locale, err)
	}

	msgs, ok := b.locales[locale]
	if !ok {
		msgs = make(map[string]string)
		b.locales[locale] = msgs
		b.tags[locale] = tag
	}
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", path)
		}
		if _, exists := msgs[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, key, locale)
		}
		msgs[key] = value
		if err := b.builder.SetString(tag, key, value); err != nil {
			return fmt.Errorf("catalog %s: register %q: %w", path, key, err)
		}
	}
	return nil
}

// Locales returns the loaded locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for l := range b.locales {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Has reports whether key exists in locale without fallback.
func (b *Bundle) Has(locale, key string) bool {
	_, ok := b.locales[locale][key]
	return ok
}

// Missing lists keys present in BaseLocale but absent from locale.
func (b *Bundle) Missing(locale string) []string {
	var out []string
	for key := range b.locales[BaseLocale] {
		if !b.Has(locale, key) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve renders key for locale with args substituted.
func (b *Bundle) Resolve(locale, key string, args ...any) string {
	chosen, ok := b.match(locale, key)
	if !ok {
		return key
	}
	p := message.NewPrinter(b.tags[chosen], message.Catalog(b.builder))
	return p.Sprintf(key, args...)
}

// match picks the locale that will render key.
func (b *Bundle) match(locale, key string) (string, bool) {
	locale = strings.TrimSpace(locale)
	if b.Has(locale, key) {
		return locale, true
	}
	if tag, err := language.Parse(locale); err == nil {
		base, _ := tag.Base()
		for _, candidate := range b.Locales() {
			if candidate == locale {
				continue
			}
			cbase, _ := b.tags[candidate].Base()
			if cbase == base && b.Has(candidate, key) {
				return candidate, true
			}
		}
	}
	if b.Has(BaseLocale, key) {
		return BaseLocale, true
	}
	return "", false
}
