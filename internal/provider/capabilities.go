package provider

import (
	"fmt"
)

// ValidateCapabilities checks if provider capabilities are valid and consistent
func ValidateCapabilities(caps ProviderCapabilities) error {
	// Check for required fields
	if len(caps.MediaTypes) == 0 && !caps.Search {
		return fmt.Errorf("provider must support at least one media type or search")
	}

	if caps.EpisodeIDs && !caps.Supports(MediaTypeSeason) {
		return fmt.Errorf("episode ids require season support")
	}

	return nil
}
