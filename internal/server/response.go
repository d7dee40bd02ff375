/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package server

import (
	"fmt"
	"strings"

	"github.com/jaipandya/crx-grabber/internal/crx"
)

const (
	contentTypeCRX = "application/x-chrome-extension"
	contentTypeZIP = "application/zip"

	// Packages are caller-specific downloads, intermediaries must not cache them.
	cacheControl = "private, no-store"
)

// sanitizeFilenamePrefix lowercases the name hint and collapses every run of
// characters outside [a-z0-9] into a single hyphen. The result is safe to put
// into a Content-Disposition filename without escaping.
func sanitizeFilenamePrefix(nameHint string) string {
	var b strings.Builder
	b.Grow(len(nameHint))
	pendingHyphen := false
	for _, r := range strings.ToLower(nameHint) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// attachmentFilename builds "{sanitized-name-}{id}.{ext}".
// The name prefix is omitted when the hint sanitizes to nothing.
func attachmentFilename(nameHint string, id crx.ID, ext string) string {
	prefix := sanitizeFilenamePrefix(nameHint)
	if prefix != "" {
		prefix += "-"
	}
	return fmt.Sprintf("%s%s.%s", prefix, id, ext)
}

func attachmentDisposition(nameHint string, id crx.ID, ext string) string {
	return fmt.Sprintf("attachment; filename=%q", attachmentFilename(nameHint, id, ext))
}
