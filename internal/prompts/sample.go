package prompts

import "github.com/gridcast/gridcast/internal/models"

// Bound returns the first min(len(records), n) records. The result is a fresh
// slice so callers may append to it without touching the input.
func Bound(records []models.Record, n int) []models.Record {
	if n <= 0 || len(records) == 0 {
		return []models.Record{}
	}
	if n > len(records) {
		n = len(records)
	}

	out := make([]models.Record, n)
	copy(out, records[:n])
	return out
}
