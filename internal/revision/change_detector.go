package revision

import "content-wiki/internal/models"

// Changed reports whether proposed differs from current in title, description or body.
// Comparison is exact; whitespace is significant and a missing description differs from an empty one.
func Changed(current, proposed models.Content) bool {
	return current.Title != proposed.Title ||
		current.Body != proposed.Body ||
		!equalOptional(current.Description, proposed.Description)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
