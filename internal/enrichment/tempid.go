package enrichment

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"regexp"
	"strings"
)

// TempIDPrefix marks identifiers generated for unresolved companies.
const TempIDPrefix = "IN"

// TempIDPattern matches a well-formed temporary company id.
var TempIDPattern = regexp.MustCompile(`^IN[A-Z2-7]{16}$`)

// NormalizeName lowercases, trims and collapses internal whitespace so
// the same customer name always hashes to the same temporary id.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// TempID derives the stable temporary company id for a normalized name:
// "IN" + base32(HMAC-SHA1(salt, normalized))[:16]. The same salt and
// name produce the same id in every process.
func TempID(salt, normalizedName string) string {
	mac := hmac.New(sha1.New, []byte(salt))
	mac.Write([]byte(normalizedName))
	digest := mac.Sum(nil)
	encoded := base32.StdEncoding.EncodeToString(digest)
	return TempIDPrefix + encoded[:16]
}

// IsTempID reports whether an id was generated by TempID.
func IsTempID(id string) bool {
	return TempIDPattern.MatchString(id)
}
