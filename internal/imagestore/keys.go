package imagestore

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeFilename reduces a client-supplied filename to a safe flat name:
// any path components are stripped and disallowed characters collapse to
// underscores. Returns "unnamed" when nothing safe remains.
func SanitizeFilename(name string) string {
	// Strip directories, both unix and windows style.
	name = filepath.Base(strings.ReplaceAll(name, `\`, `/`))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")

	if name == "" {
		return "unnamed"
	}
	return name
}

// BuildKey derives a collision-resistant storage key from the current time and
// the sanitized original filename. The random suffix keeps same-named files
// uploaded within the same second distinct.
func BuildKey(now time.Time, originalName string) string {
	timestamp := now.Format("20060102_150405")
	suffix := uuid.NewString()[:8]
	return timestamp + "_" + suffix + "_" + SanitizeFilename(originalName)
}
