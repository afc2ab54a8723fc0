package utils

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CleanFilename turns "my_track-name.mp3" into a title-ish "my track name".
func CleanFilename(filename string) string {
	ext := filepath.Ext(filename)
	clean := strings.TrimSuffix(filename, ext)
	clean = strings.ReplaceAll(clean, "_", " ")
	clean = strings.ReplaceAll(clean, "-", " ")
	return strings.TrimSpace(clean)
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._\- ()\[\]&+,']+`)

const maxNameLength = 255

// SanitizeFilename reduces an uploaded name to a single safe path segment.
// It returns "" when nothing usable is left.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" || name == "_" {
		return ""
	}

	if len(name) > maxNameLength {
		ext := filepath.Ext(name)
		base := name[:maxNameLength-len(ext)]
		for !utf8.ValidString(base) {
			base = base[:len(base)-1]
		}
		name = base + ext
	}
	return name
}

func SanitizeYear(dateStr string) string {
	if len(dateStr) >= 4 {
		year := dateStr[:4]
		if match, _ := regexp.MatchString(`^\d{4}$`, year); match {
			return year
		}
	}
	return ""
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return ""
	}
	total := int(math.Round(seconds))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
