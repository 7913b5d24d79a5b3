// Package i18n renders the feedback text of wrong-answer notes in the
// languages shipped under locales/.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog holds the parsed translation bundle. It is read-only after Load.
type Catalog struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	tags    []language.Tag
}

// Load parses every embedded locale file. defaultLang is used when a
// requested language has no translation.
func Load(defaultLang string) (*Catalog, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	// The default language goes first so the matcher falls back to it.
	tags := []language.Tag{tag}
	for _, t := range bundle.LanguageTags() {
		if t != tag {
			tags = append(tags, t)
		}
	}
	return &Catalog{bundle: bundle, matcher: language.NewMatcher(tags), tags: tags}, nil
}

// Translator returns a translator for the given language preferences,
// most preferred first.
func (c *Catalog) Translator(langs ...string) *Translator {
	return &Translator{loc: i18n.NewLocalizer(c.bundle, langs...)}
}

// Match returns a translator for an Accept-Language header value.
func (c *Catalog) Match(acceptLanguage string) *Translator {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return c.Translator(c.tags[0].String())
	}
	_, idx, _ := c.matcher.Match(prefs...)
	return c.Translator(c.tags[idx].String())
}

// Translator localizes messages for one language.
type Translator struct {
	loc *i18n.Localizer
}

// T translates a message by ID with optional template data.
// Missing messages are logged and rendered as their ID.
func (t *Translator) T(msgID string, data map[string]any) string {
	s, err := t.loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Objective renders the feedback of a wrong objective answer.
func (t *Translator) Objective(correct, chosen, explanation string) string {
	data := map[string]any{"Correct": correct, "Chosen": chosen, "Explanation": explanation}
	if explanation == "" {
		return t.T("ObjectiveFeedback", data)
	}
	return t.T("ObjectiveFeedbackExplained", data)
}

// Essay renders the feedback of an essay answer that missed full marks.
// An empty modelAnswer is left out of the text.
func (t *Translator) Essay(points, received float64, modelAnswer string) string {
	data := map[string]any{
		"Points":      formatPoints(points),
		"Received":    formatPoints(received),
		"ModelAnswer": modelAnswer,
	}
	if modelAnswer == "" {
		return t.T("EssayFeedback", data)
	}
	return t.T("EssayFeedbackWithModel", data)
}

// NoAnswer renders the note shown for an unanswered question.
func (t *Translator) NoAnswer() string {
	return t.T("NoAnswer", nil)
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
