package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// filenameReplacer strips characters that are unsafe in stored filenames.
var filenameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFilename normalizes an uploaded filename for safe use as
// provenance and as an extension source. The name is NFC-normalized,
// stripped of any path components, and cleared of null bytes and control
// characters. Empty or traversal-only names become "upload".
func SanitizeFilename(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))

	// Keep only the final path segment, whichever separator the client used.
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == 0 || r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	name = strings.TrimSpace(filenameReplacer.Replace(b.String()))
	name = strings.Trim(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}

// extensionOf returns the lowercase extension of a sanitized filename
// without the dot, or fallback when the name carries none.
func extensionOf(name, fallback string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return fallback
	}
	return strings.ToLower(name[idx+1:])
}
