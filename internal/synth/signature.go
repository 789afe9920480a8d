package synth

import (
	"crypto/sha256"
	"encoding/hex"
)

// signatureDomain separates trigger DDL hashes from any other SHA-256
// use. The version suffix allows a future layout migration to force a
// one-time replace of every installed trigger.
const signatureDomain = "retrofeed/trigger/v1"

// Signature computes the comparison key for a trigger DDL text.
// Format: SHA256(domain + 0x00 + ddl), hex encoded. The null separator
// prevents domain/data boundary ambiguity. Two DDL texts share a
// signature iff they are byte-identical.
func Signature(ddl string) string {
	h := sha256.New()
	h.Write([]byte(signatureDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(ddl))
	return hex.EncodeToString(h.Sum(nil))
}
