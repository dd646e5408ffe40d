package storage

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"
)

// SignatureAlgorithm is the digest used to sign upload parameters
type SignatureAlgorithm string

const (
	SignatureSHA1   SignatureAlgorithm = "sha1"
	SignatureSHA256 SignatureAlgorithm = "sha256"
)

// excluded from the string to sign
var unsignedParams = map[string]struct{}{
	"file":       {},
	"api_key":    {},
	"signature":  {},
	"cloud_name": {},
}

// StringToSign builds the canonical parameter string: non-empty params sorted by key and joined as key=value with '&'
func StringToSign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if _, skip := unsignedParams[k]; skip || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

// SignParams returns the hex digest of the canonical parameter string followed by the secret
func SignParams(params map[string]string, secret string, algorithm SignatureAlgorithm) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is empty")
	}

	var h hash.Hash
	switch algorithm {
	case SignatureSHA1, "":
		h = sha1.New()
	case SignatureSHA256:
		h = sha256.New()
	default:
		return "", fmt.Errorf("unsupported signature algorithm: %s", algorithm)
	}

	h.Write([]byte(StringToSign(params) + secret))
	return hex.EncodeToString(h.Sum(nil)), nil
}
