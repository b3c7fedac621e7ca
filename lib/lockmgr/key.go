package lockmgr

import (
	"crypto/sha256"
	"encoding/base64"
	"regexp"
)

const (
	keyPrefix      = "sf."
	keySuffix      = ".lock"
	fingerprintLen = 7
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StorageKey derives the storage key for a resource name:
// prefix, the sanitized name, a 7 character fingerprint of the raw name and a suffix.
// The fingerprint keeps names apart that sanitize to the same text.
func StorageKey(name string) string {
	sum := sha256.Sum256([]byte(name))
	fp := base64.URLEncoding.EncodeToString(sum[:])[:fingerprintLen]
	return keyPrefix + unsafeKeyChars.ReplaceAllString(name, "-") + "." + fp + keySuffix
}
