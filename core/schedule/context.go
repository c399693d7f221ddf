package schedule

import (
	"strings"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/fr"
)

// Messages are rendered and delivered outside any web request, so every URL
// placed in a template context must be absolute.
func absoluteURL(site Site, path string) string {
	base := strings.TrimSuffix(site.BaseURL, "/")
	if base == "" {
		base = "https://" + site.Domain
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func courseURL(site Site, courseID string) string {
	return absoluteURL(site, "/courses/"+courseID+"/course/")
}

func baseTemplateContext(site Site) map[string]interface{} {
	return map[string]interface{}{
		"platform_name": site.Name,
		"homepage_url":  absoluteURL(site, "/"),
		"dashboard_url": absoluteURL(site, "/dashboard"),
		"contact_url":   absoluteURL(site, "/contact"),
	}
}

var dateLocales = map[string]locales.Translator{
	"en": en.New(),
	"es": es.New(),
	"fr": fr.New(),
}

// formatDate renders a date the way the course's language expects it.
// Unknown languages fall back to English.
func formatDate(t time.Time, lang string) string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	loc, ok := dateLocales[strings.ToLower(lang)]
	if !ok {
		loc = dateLocales["en"]
	}
	return loc.FmtDateLong(t)
}
