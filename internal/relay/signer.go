// Package relay publishes score mappings to a downstream receiver over an
// authenticated HTTP POST.
//
// Two independent checks travel with every request. X-Signature carries an
// HMAC-SHA256 over the exact body bytes and proves integrity. Password is a
// static bearer credential: it identifies the sender but says nothing about
// the body, and anyone who sees one request can replay it.
package relay

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	HeaderSignature  = "X-Signature"
	HeaderCredential = "Password"

	signaturePrefix = "sha256="
)

// SignedPayload is the body exactly as transmitted and its signature.
type SignedPayload struct {
	Body      []byte
	Signature string
}

// Canonicalize serializes scores as a JSON object with keys in byte order,
// no whitespace, and floats in their shortest round-trip form.
func Canonicalize(scores map[string]float64) ([]byte, error) {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		v := scores[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("score for %q is not finite", k)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(formatScore(v))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// formatScore writes integral values with a trailing ".0" so a float stays
// recognizably a float on the receiving side.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Sign returns "sha256=<lowercase hex>" of the HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is the signature of body under secret.
func Verify(body []byte, header, secret string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(header))
}

// CheckCredential compares the static credential in constant time. It is a
// separate check from Verify and carries no integrity guarantee.
func CheckCredential(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// NewSignedPayload serializes scores once and signs those bytes.
func NewSignedPayload(scores map[string]float64, secret string) (*SignedPayload, error) {
	body, err := Canonicalize(scores)
	if err != nil {
		return nil, err
	}
	return &SignedPayload{Body: body, Signature: Sign(body, secret)}, nil
}
