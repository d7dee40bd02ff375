/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package crx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		Name    string
		In      string
		Want    ID
		WantErr bool
	}{
		{Name: "valid lowercase", In: strings.Repeat("a", 32), Want: ID(strings.Repeat("a", 32))},
		{Name: "valid mixed case is normalized", In: "AbCdEfGhIjKlMnOpQrStUvWxYzAbCdEf", Want: "abcdefghijklmnopqrstuvwxyzabcdef"},
		{Name: "valid uppercase", In: strings.Repeat("Z", 32), Want: ID(strings.Repeat("z", 32))},
		{Name: "empty", In: "", WantErr: true},
		{Name: "too short", In: strings.Repeat("a", 31), WantErr: true},
		{Name: "too long", In: strings.Repeat("a", 33), WantErr: true},
		{Name: "digit", In: strings.Repeat("a", 31) + "1", WantErr: true},
		{Name: "hyphen", In: strings.Repeat("a", 31) + "-", WantErr: true},
		{Name: "space", In: strings.Repeat("a", 31) + " ", WantErr: true},
		{Name: "unicode letter", In: strings.Repeat("a", 31) + "é", WantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			id, err := ParseID(tt.In)
			if tt.WantErr {
				require.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.Want, id)
		})
	}
}
