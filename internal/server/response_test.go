/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaipandya/crx-grabber/internal/crx"
)

func TestSanitizeFilenamePrefix(t *testing.T) {
	tests := []struct {
		name string
		hint string
		want string
	}{
		{name: "plain lowercase", hint: "adblock", want: "adblock"},
		{name: "mixed case", hint: "AdBlock", want: "adblock"},
		{name: "spaces and punctuation", hint: "My Cool!! Extension--Name", want: "my-cool-extension-name"},
		{name: "digits kept", hint: "ext 2 go", want: "ext-2-go"},
		{name: "leading and trailing junk", hint: "  ***ext***  ", want: "ext"},
		{name: "empty", hint: "", want: ""},
		{name: "whitespace only", hint: "   ", want: ""},
		{name: "symbols only", hint: "!!!***", want: ""},
		{name: "unicode stripped", hint: "拡張 ext", want: "ext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, sanitizeFilenamePrefix(tt.hint))
		})
	}
}

func TestAttachmentFilename(t *testing.T) {
	id := crx.ID(strings.Repeat("a", crx.IDLength))

	require.Equal(t, "my-ext-"+id.String()+".crx", attachmentFilename("My Ext", id, "crx"))
	require.Equal(t, "my-cool-extension-name-"+id.String()+".zip",
		attachmentFilename("My Cool!! Extension--Name", id, "zip"))

	// No leading hyphen when the hint sanitizes away.
	require.Equal(t, id.String()+".zip", attachmentFilename("", id, "zip"))
	require.Equal(t, id.String()+".crx", attachmentFilename("   ", id, "crx"))
}
