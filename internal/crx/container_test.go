/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package crx

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeCRX3(headerLen int, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(headerLen))
	buf.Write(bytes.Repeat([]byte{0xAB}, headerLen))
	buf.Write(payload)
	return buf.Bytes()
}

func makeCRX2(pubKeyLen, sigLen int, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(pubKeyLen))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sigLen))
	buf.Write(bytes.Repeat([]byte{0xCD}, pubKeyLen))
	buf.Write(bytes.Repeat([]byte{0xEF}, sigLen))
	buf.Write(payload)
	return buf.Bytes()
}

func TestStripHeaderCRX3(t *testing.T) {
	payload := append([]byte{}, zipLocalFileHeaderSignature...)
	payload = append(payload, []byte("archive contents")...)

	for _, headerLen := range []int{0, 16, 4096} {
		got, err := StripHeader(makeCRX3(headerLen, payload))
		require.NoError(t, err, "headerLen=%d", headerLen)
		require.Equal(t, payload, got, "headerLen=%d", headerLen)
	}
}

func TestStripHeaderCRX2(t *testing.T) {
	payload := append([]byte{}, zipLocalFileHeaderSignature...)
	payload = append(payload, []byte("archive contents")...)

	tests := []struct{ PubKeyLen, SigLen int }{
		{0, 0},
		{0, 64},
		{270, 0},
		{270, 256},
	}
	for _, tt := range tests {
		got, err := StripHeader(makeCRX2(tt.PubKeyLen, tt.SigLen, payload))
		require.NoError(t, err, "pubKeyLen=%d sigLen=%d", tt.PubKeyLen, tt.SigLen)
		require.Equal(t, payload, got)
	}
}

func TestStripHeaderUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write([]byte("whatever"))

	_, err := StripHeader(buf.Bytes())
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestStripHeaderTruncated(t *testing.T) {
	t.Run("header length beyond buffer end", func(t *testing.T) {
		crx := makeCRX3(0, []byte("payload"))
		binary.LittleEndian.PutUint32(crx[8:12], uint32(len(crx))) // payload offset = 12+len(crx)
		_, err := StripHeader(crx)
		require.ErrorIs(t, err, ErrTruncatedContainer)
	})

	t.Run("declared lengths overflow buffer", func(t *testing.T) {
		crx := makeCRX2(0, 0, nil)
		binary.LittleEndian.PutUint32(crx[8:12], 0xFFFFFFFF)
		_, err := StripHeader(crx)
		require.ErrorIs(t, err, ErrTruncatedContainer)
	})

	t.Run("magic only", func(t *testing.T) {
		_, err := StripHeader([]byte(magic))
		require.ErrorIs(t, err, ErrTruncatedContainer)
	})

	t.Run("version cut short", func(t *testing.T) {
		crx := makeCRX3(0, nil)
		_, err := StripHeader(crx[:10])
		require.ErrorIs(t, err, ErrTruncatedContainer)
	})
}

func TestStripHeaderEmptyPayload(t *testing.T) {
	got, err := StripHeader(makeCRX3(16, nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStripHeaderBareArchive(t *testing.T) {
	t.Run("signature at offset zero", func(t *testing.T) {
		zip := append(append([]byte{}, zipLocalFileHeaderSignature...), []byte("entry data")...)
		got, err := StripHeader(zip)
		require.NoError(t, err)
		require.Equal(t, zip, got)
	})

	t.Run("signature at offset 37", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0x00}, 37)
		buf = append(buf, zipLocalFileHeaderSignature...)
		buf = append(buf, []byte("entry data")...)
		got, err := StripHeader(buf)
		require.NoError(t, err)
		require.Equal(t, buf[37:], got)
	})

	t.Run("signature just inside the scan window", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0x00}, DefaultZipScanWindow-1)
		buf = append(buf, zipLocalFileHeaderSignature...)
		got, err := StripHeader(buf)
		require.NoError(t, err)
		require.Equal(t, buf[DefaultZipScanWindow-1:], got)
	})

	t.Run("signature beyond the scan window", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0x00}, DefaultZipScanWindow)
		buf = append(buf, zipLocalFileHeaderSignature...)
		_, err := StripHeader(buf)
		require.ErrorIs(t, err, ErrUnrecognizedFormat)
	})

	t.Run("widened scan window", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0x00}, DefaultZipScanWindow)
		buf = append(buf, zipLocalFileHeaderSignature...)
		got, err := StripHeaderWithOpts(buf, StripOpts{ZipScanWindow: 2 * DefaultZipScanWindow})
		require.NoError(t, err)
		require.Equal(t, buf[DefaultZipScanWindow:], got)
	})

	t.Run("no signature at all", func(t *testing.T) {
		_, err := StripHeader(bytes.Repeat([]byte{0x00}, 2048))
		require.ErrorIs(t, err, ErrUnrecognizedFormat)
	})
}

func TestStripHeaderReturnsSubSlice(t *testing.T) {
	payload := []byte("archive contents")
	crx := makeCRX3(8, payload)
	got, err := StripHeader(crx)
	require.NoError(t, err)
	require.Equal(t, &crx[12+8], &got[0], "payload must be a view into the input buffer")
}
