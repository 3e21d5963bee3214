package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SigningKey derives the scoped signing key for a secret:
//
//	kDate    = HMAC("AWS4"+secret, date8)
//	kRegion  = HMAC(kDate, region)
//	kService = HMAC(kRegion, service)
//	kSigning = HMAC(kService, "aws4_request")
//
// date8 is the first 8 characters of X-Amz-Date. The result is ephemeral: it
// must not be logged or persisted.
func SigningKey(secret, date8, region, service string) []byte {
	kDate := hmacSHA256([]byte(secretPrefix+secret), []byte(date8))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(scopeTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
