package puzzle

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	yaml "gopkg.in/yaml.v3"
)

//go:embed themes.yaml
var defaultThemes []byte

// ThemeEntry describes one canonical theme.
type ThemeEntry struct {
	Display string   `yaml:"display"`
	Aliases []string `yaml:"aliases"`
}

type themeFile struct {
	Themes map[string]ThemeEntry `yaml:"themes"`
}

// ThemeCatalog maps every known spelling of a theme to one canonical
// snake_case key. Themes not in the catalog still normalise to snake_case.
type ThemeCatalog struct {
	entries map[string]ThemeEntry
	aliases map[string]string
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *ThemeCatalog
	defaultCatalogErr  error
)

// DefaultThemeCatalog returns the embedded catalog.
func DefaultThemeCatalog() (*ThemeCatalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseThemeCatalog(defaultThemes)
	})
	return defaultCatalog, defaultCatalogErr
}

// LoadThemeCatalog reads the embedded catalog and, when path is set, merges
// the entries of that YAML file over it.
func LoadThemeCatalog(path string) (*ThemeCatalog, error) {
	base, err := ParseThemeCatalog(defaultThemes)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme catalog: %w", err)
	}
	var f themeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse theme catalog %s: %w", path, err)
	}
	for key, entry := range f.Themes {
		base.add(key, entry)
	}
	return base, nil
}

func ParseThemeCatalog(raw []byte) (*ThemeCatalog, error) {
	var f themeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse theme catalog: %w", err)
	}
	c := &ThemeCatalog{
		entries: make(map[string]ThemeEntry, len(f.Themes)),
		aliases: make(map[string]string),
	}
	for key, entry := range f.Themes {
		c.add(key, entry)
	}
	return c, nil
}

func (c *ThemeCatalog) add(key string, entry ThemeEntry) {
	canon := snakeCase(key)
	if canon == "" {
		return
	}
	c.entries[canon] = entry
	for _, a := range entry.Aliases {
		if s := snakeCase(a); s != "" && s != canon {
			c.aliases[s] = canon
		}
	}
}

// Canonical returns the canonical key for a raw theme tag, or "" for an
// empty tag.
func (c *ThemeCatalog) Canonical(raw string) string {
	s := snakeCase(raw)
	if s == "" || c == nil {
		return s
	}
	if _, ok := c.entries[s]; ok {
		return s
	}
	if canon, ok := c.aliases[s]; ok {
		return canon
	}
	// "backRankMate" and "back_rank_mate" differ only in separators
	compact := strings.ReplaceAll(s, "_", "")
	if canon, ok := c.aliases[compact]; ok {
		return canon
	}
	for key := range c.entries {
		if strings.ReplaceAll(key, "_", "") == compact {
			return key
		}
	}
	return s
}

// CanonicalAll normalises and de-duplicates tags, keeping first-seen order.
func (c *ThemeCatalog) CanonicalAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		k := c.Canonical(r)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Display returns the human label of a theme.
func (c *ThemeCatalog) Display(raw string) string {
	key := c.Canonical(raw)
	if c != nil {
		if e, ok := c.entries[key]; ok && e.Display != "" {
			return e.Display
		}
	}
	words := strings.Split(key, "_")
	if len(words) > 0 && words[0] != "" {
		r := []rune(words[0])
		r[0] = unicode.ToUpper(r[0])
		words[0] = string(r)
	}
	return strings.Join(words, " ")
}

// Keys returns every canonical key, sorted.
func (c *ThemeCatalog) Keys() []string {
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FuzzyPattern builds a case-insensitive-ready pattern that matches a
// canonical theme in any separator style: fork_in_3, forkIn3, fork-in-3.
// The pattern is valid both for Go regexp and for PostgreSQL ~*.
func FuzzyPattern(canonical string) string {
	words := strings.FieldsFunc(canonical, func(r rune) bool { return r == '_' })
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return "^" + strings.Join(words, "[-_ ]?") + "$"
}

// snakeCase lowercases s and splits it at separators and camelCase humps.
func snakeCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	runes := []rune(s)
	lastUnderscore := true
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && !lastUnderscore && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
