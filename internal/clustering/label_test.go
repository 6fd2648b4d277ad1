package clustering

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The Export-to-CSV button is broken on iOS")
	assert.Equal(t, []string{"export", "csv", "button", "broken", "ios"}, tokens)
	assert.Empty(t, Tokenize("a an to of"))
}

func TestLabel(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name     string
		titles   []string
		broad    bool
		expected string
	}{
		{
			name:     "single member keeps title",
			titles:   []string{"Export to CSV"},
			expected: "Export to CSV",
		},
		{
			name:     "shared tokens",
			titles:   []string{"Dark mode toggle", "Dark mode schedule", "Dark mode contrast", "Light theme"},
			expected: "Dark & Mode",
		},
		{
			name:     "no shared tokens falls back to first title",
			titles:   []string{"Alpha", "Bravo", "Charlie"},
			expected: "Alpha (+2 more)",
		},
		{
			name:     "broad view requires two titles",
			titles:   []string{"Billing export", "Invoice export", "Team invites", "Audit logs", "Usage charts"},
			broad:    true,
			expected: "Export",
		},
		{
			name:     "broad fallback uses longest title",
			titles:   []string{"Alpha", "Bravo longer", "Charlie"},
			broad:    true,
			expected: "Bravo longer (+2 more)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Label(tt.titles, tt.broad, opts))
		})
	}
}

func TestLabel_AtMostThreeTokens(t *testing.T) {
	titles := []string{"sync calendar events offline", "sync calendar events offline"}
	assert.Equal(t, "Sync & Calendar & Events", Label(titles, false, DefaultOptions()))
}

func TestLabel_OnlySamplesFirstTitles(t *testing.T) {
	titles := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		titles = append(titles, "webhook retries")
	}
	for i := 0; i < 10; i++ {
		titles = append(titles, "pagination")
	}
	assert.Equal(t, "Webhook & Retries", Label(titles, false, DefaultOptions()))
}

func TestLabel_TruncatesFallback(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLength = 12
	label := Label([]string{"ab cd ef gh ij kl mn op qr", "xy"}, false, opts)
	assert.True(t, strings.HasPrefix(label, "ab cd ef..."))
	assert.True(t, strings.HasSuffix(label, "(+1 more)"))
}
