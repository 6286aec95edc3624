package params

import (
	"time"

	"github.com/itchyny/timefmt-go"
)

// formatDate renders t using a strftime-style pattern such as "%Y%m%d".
func formatDate(t time.Time, pattern string) string {
	return timefmt.Format(t, pattern)
}

// parseDate parses value with a strftime-style pattern. Text outside the
// directives must match literally.
func parseDate(value, pattern string) (time.Time, error) {
	return timefmt.Parse(value, pattern)
}
