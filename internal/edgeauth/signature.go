// Package edgeauth implements the HMAC request authentication scheme
// used by edge servers when calling the cloud API, and by the cloud when
// calling back into edge servers.
package edgeauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Request headers carrying the authentication material
const (
	HeaderKey       = "X-EDGE-KEY"
	HeaderTimestamp = "X-EDGE-TIMESTAMP"
	HeaderSignature = "X-EDGE-SIGNATURE"
)

// Canonical builds the string that gets signed:
//
//	UPPER(method)|path|timestamp|hex(sha256(body))
//
// path is the URL path only, no query string. body is the raw request
// body bytes exactly as transmitted.
func Canonical(method, path string, timestamp int64, body []byte) string {
	bodyHash := sha256.Sum256(body)

	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('|')
	b.WriteString(path)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('|')
	b.WriteString(hex.EncodeToString(bodyHash[:]))

	return b.String()
}

// Sign computes the lowercase hex HMAC-SHA256 signature of the canonical
// request representation.
func Sign(secret, method, path string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Canonical(method, path, timestamp, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented signature in constant time
func Verify(secret, method, path string, timestamp int64, body []byte, signature string) bool {
	expected := Sign(secret, method, path, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
