package errors

import (
	"strings"
	"unicode"
)

// maxQueryLength bounds the search text sent to the search endpoint.
const maxQueryLength = 256

// ValidateQuery validates a search query before any request is issued.
//
// The validation rules are intentionally conservative:
//   - No empty or whitespace-only queries
//   - No control characters
//   - Maximum length of 256 characters
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return New(ErrCodeInvalidInput, "search query cannot be empty")
	}

	if len(query) > maxQueryLength {
		return New(ErrCodeInvalidInput, "search query too long (max %d characters)", maxQueryLength)
	}

	for _, r := range query {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "search query contains invalid control characters")
		}
	}

	return nil
}

// ValidatePages validates the number of result pages to fetch.
func ValidatePages(pages int) error {
	if pages < 1 {
		return New(ErrCodeInvalidInput, "pages must be at least 1, got %d", pages)
	}
	return nil
}

// ValidatePackageName validates a package name used to build a statistics URL.
// It rejects names that could escape the URL path segment.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "package name cannot be empty")
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "package name contains invalid characters: %q", name)
		}
	}

	for _, pattern := range []string{"..", "/", "\\", "?", "#"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidConfig, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidConfig, "URL must use http or https scheme: %q", rawURL)
	}

	return nil
}
