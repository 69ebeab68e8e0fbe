package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// domainResult separates result IDs from any other hash this module may
// compute over the same bytes. The version suffix leaves room for changing
// the record shape.
const domainResult = "layoutsync/result/v1"

// ResultID returns the content-addressed identity of r: SHA-256 over the
// domain, a 0x00 separator and r's canonical record.
//
// Two deliveries of the same result share an ID, which is what lets the
// store ignore duplicates.
func ResultID(r OperationResult) (string, error) {
	canonical, err := MarshalCanonical(r.Record())
	if err != nil {
		return "", fmt.Errorf("result id: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domainResult))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustResultID is ResultID for inputs known to be encodable. Panics
// otherwise; use in tests only.
func MustResultID(r OperationResult) string {
	id, err := ResultID(r)
	if err != nil {
		panic(err)
	}
	return id
}
