package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Alpha Capital":            "alpha-capital",
		"AQR Capital Management":   "aqr-capital-management",
		"Marshall Wace LLP":        "marshall-wace-llp",
		"BlackRock (UK) Ltd.":      "blackrock-uk-ltd",
		"  Odd   Spacing  ":        "odd-spacing",
		"Citadel Advisors II, L.P": "citadel-advisors-ii-l-p",
		"":                         "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-03-05", FormatDate(time.Date(2024, 3, 5, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "", FormatDate(time.Time{}))
}
