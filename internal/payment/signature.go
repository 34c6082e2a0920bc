package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// Canonical joins params as key=value pairs sorted by key and separated by
// '&'. escape, when set, is applied to every value.
func Canonical(params map[string]string, escape func(string) string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		v := params[k]
		if escape != nil {
			v = escape(v)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

func SignSHA256(secret, data string) string {
	return sign(sha256.New, secret, data)
}

func SignSHA512(secret, data string) string {
	return sign(sha512.New, secret, data)
}

func sign(h func() hash.Hash, secret, data string) string {
	mac := hmac.New(h, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureMatches compares hex signatures in constant time, ignoring case.
func SignatureMatches(expected, received string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(received)))
}

// FromQuery flattens URL values into callback params, keeping the first value.
func FromQuery(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}
	return params
}
