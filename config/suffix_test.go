package config

import (
	"testing"

	"github.com/garry/tracklink/textproc"
)

// TestDefaultApproachesRemoveSuffixes checks the Jessie Ware - Spotlight - Single Edit
// scenario and friends against the built-in vocabulary
func TestDefaultApproachesRemoveSuffixes(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"Spotlight - Single Edit", "Spotlight"},
		{"Spotlight - Edit", "Spotlight"},
		{"Spotlight - Radio Edit", "Spotlight"},
		{"Spotlight - Extended", "Spotlight"},
		{"Spotlight - Remix", "Spotlight"},
		{"Spotlight - Bonus Track", "Spotlight"},
		{"Spotlight (Radio Edit)", "Spotlight"},
		{"Spotlight [Remastered 2011]", "Spotlight"},
		{"Spotlight", "Spotlight"}, // Should remain unchanged
		{"Song Title - Version", "Song Title"},
		{"Song Title - Live", "Song Title"},
		{"Song Title - Acoustic", "Song Title"},
	}

	m := DefaultMatching()
	var trimmed textproc.Approach
	for _, approach := range m.SearchApproaches {
		if approach.ID == "trimmed" {
			trimmed = approach
		}
	}
	if trimmed.ID == "" {
		t.Fatal("Expected a trimmed approach in the defaults")
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := textproc.Normalize(tc.input, trimmed, m.TextProcessing)
			if result != tc.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tc.input, result, tc.expected)
			}
		})
	}
}

// TestFilteredApproachDropsSuffixWords checks words are removed even without a separator
func TestFilteredApproachDropsSuffixWords(t *testing.T) {
	m := DefaultMatching()
	approach := textproc.Approach{ID: "words", Filtered: true}

	testCases := []struct {
		input    string
		expected string
	}{
		{"Spotlight Radio Edit", "Spotlight"},
		{"Song Title Live", "Song Title"},
		{"Livewire", "Livewire"},
	}
	for _, tc := range testCases {
		result := textproc.Normalize(tc.input, approach, m.TextProcessing)
		if result != tc.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", tc.input, result, tc.expected)
		}
	}
}
