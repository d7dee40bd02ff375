/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

// Package crx implements parsing of the Chrome extension (CRX) container format.
//
// A CRX file is a ZIP archive prepended with a signed header. Two header
// layouts exist: CRX2 (public key + signature) and CRX3 (a single
// length-prefixed protobuf header). The package locates the embedded ZIP
// payload without verifying any signatures.
package crx

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// magic is the 4-byte sequence every CRX container starts with.
const magic = "Cr24"

// DefaultZipScanWindow bounds how far into a headerless buffer the ZIP
// local-file-header signature is searched for.
const DefaultZipScanWindow = 1024

// zipLocalFileHeaderSignature starts every entry of a ZIP archive.
var zipLocalFileHeaderSignature = []byte{0x50, 0x4b, 0x03, 0x04}

// Parse errors. Callers that have no use for the distinction may treat
// all three as a single "not a valid container" condition.
var (
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrTruncatedContainer = errors.New("truncated container")
	ErrUnrecognizedFormat = errors.New("unrecognized container format")
)

// StripOpts represents options for StripHeaderWithOpts.
type StripOpts struct {
	// ZipScanWindow overrides DefaultZipScanWindow when positive.
	ZipScanWindow int
}

// StripHeader returns the ZIP archive embedded in a CRX container.
// See StripHeaderWithOpts.
func StripHeader(buf []byte) ([]byte, error) {
	return StripHeaderWithOpts(buf, StripOpts{})
}

// StripHeaderWithOpts locates the ZIP payload inside buf and returns it as a
// sub-slice of buf; no copy is made. If buf carries the CRX magic, the header
// length is computed from the version-specific layout. If it does not, the
// buffer may already be a bare ZIP archive: the first ZipScanWindow bytes are
// scanned for the ZIP local-file-header signature and the payload starts at
// the first match.
func StripHeaderWithOpts(buf []byte, opts StripOpts) ([]byte, error) {
	scanWindow := opts.ZipScanWindow
	if scanWindow <= 0 {
		scanWindow = DefaultZipScanWindow
	}

	if !bytes.HasPrefix(buf, []byte(magic)) {
		return findBareArchive(buf, scanWindow)
	}

	if len(buf) < 8 {
		return nil, ErrTruncatedContainer
	}
	version := binary.LittleEndian.Uint32(buf[4:8])

	var payloadStart uint64
	switch version {
	case 2:
		// CRX2: magic, version, public key length, signature length, key, signature, ZIP.
		if len(buf) < 16 {
			return nil, ErrTruncatedContainer
		}
		pubKeyLen := binary.LittleEndian.Uint32(buf[8:12])
		sigLen := binary.LittleEndian.Uint32(buf[12:16])
		payloadStart = 16 + uint64(pubKeyLen) + uint64(sigLen)
	case 3:
		// CRX3: magic, version, header length, header, ZIP.
		if len(buf) < 12 {
			return nil, ErrTruncatedContainer
		}
		headerLen := binary.LittleEndian.Uint32(buf[8:12])
		payloadStart = 12 + uint64(headerLen)
	default:
		return nil, ErrUnsupportedVersion
	}

	if payloadStart > uint64(len(buf)) {
		return nil, ErrTruncatedContainer
	}
	return buf[payloadStart:], nil
}

// findBareArchive handles buffers without the CRX magic that may already be a
// plain ZIP archive, possibly preceded by junk bytes. The signature must start
// within the first scanWindow bytes.
func findBareArchive(buf []byte, scanWindow int) ([]byte, error) {
	limit := scanWindow + len(zipLocalFileHeaderSignature) - 1
	if limit > len(buf) {
		limit = len(buf)
	}
	if idx := bytes.Index(buf[:limit], zipLocalFileHeaderSignature); idx >= 0 && idx < scanWindow {
		return buf[idx:], nil
	}
	return nil, ErrUnrecognizedFormat
}
