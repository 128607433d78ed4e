package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScrapeMode(t *testing.T) {
	for _, mode := range []ScrapeMode{RecentOnly, CategoryScoped, CacheOnly} {
		parsed, err := ParseScrapeMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	_, err := ParseScrapeMode("full-update")
	require.Error(t, err)
}

func TestFilterQueryValidate(t *testing.T) {
	tests := []struct {
		name  string
		query FilterQuery
		valid bool
	}{
		{"empty", FilterQuery{}, true},
		{"known vocabulary", FilterQuery{Categories: []string{"Chat", "Music"},
			Pricing: []string{"Free", "Open Source"}}, true},
		{"text only", FilterQuery{Text: "anything goes"}, true},
		{"unknown category", FilterQuery{Categories: []string{"Quantum"}}, false},
		{"unknown pricing", FilterQuery{Pricing: []string{"Donationware"}}, false},
		{"lowercase category", FilterQuery{Categories: []string{"chat"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidFilterQuery))
			}
		})
	}
}

func TestVocabularyLookups(t *testing.T) {
	assert.True(t, KnownCategory("Automation & Agents"))
	assert.False(t, KnownCategory("Automation"))
	assert.True(t, KnownPricing("Google Colab"))
	assert.False(t, KnownPricing("Trial"))
}
