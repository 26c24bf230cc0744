// Package security sanitises user-controlled strings before they reach
// file names and response headers.
package security

import (
	"path/filepath"
	"strings"
)

// maxFilenameLen bounds sanitised names.
const maxFilenameLen = 128

// SanitizeFilename keeps ASCII letters, digits, dot, underscore and dash,
// replacing every other run of characters with one underscore. Leading and
// trailing dots and underscores are trimmed; an empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// DownloadName builds a safe attachment name from the base name of source
// (without extension), a suffix and an extension, e.g.
// ("/data/run 1.evt", "3f2a", ".npy") -> "run_1_3f2a.npy".
func DownloadName(source, suffix, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if suffix != "" {
		stem += "_" + suffix
	}
	return SanitizeFilename(stem) + ext
}
