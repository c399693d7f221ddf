package schedule

import (
	"testing"
	"time"
)

func TestFormatDate(t *testing.T) {
	date := time.Date(2020, 2, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		lang string
		want string
	}{
		{lang: "en", want: "February 2, 2020"},
		{lang: "en-US", want: "February 2, 2020"},
		{lang: "es", want: "2 de febrero de 2020"},
		{lang: "fr", want: "2 février 2020"},
		{lang: "fr_CA", want: "2 février 2020"},
		{lang: "de", want: "February 2, 2020"}, // unsupported falls back to English
		{lang: "", want: "February 2, 2020"},
	}
	for _, tt := range tests {
		t.Run("lang "+tt.lang, func(t *testing.T) {
			if got := formatDate(date, tt.lang); got != tt.want {
				t.Errorf("formatDate(%q) = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	site := Site{Domain: "lms.test", BaseURL: "https://lms.test/"}
	if got := absoluteURL(site, "dashboard"); got != "https://lms.test/dashboard" {
		t.Errorf("absoluteURL() = %q", got)
	}

	noBase := Site{Domain: "lms.test"}
	if got := courseURL(noBase, "course-v1:orgA+A+2020"); got != "https://lms.test/courses/course-v1:orgA+A+2020/course/" {
		t.Errorf("courseURL() = %q", got)
	}
}
