package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const macField = "CheckMacValue"

// Sign computes CheckMacValue: upper-case hex HMAC-SHA256 keyed with hashKey over
// the alphabetically sorted, URL-encoded key=value pairs. Any CheckMacValue already
// present in fields is ignored.
func Sign(fields map[string]string, hashKey string) string {
	mac := hmac.New(sha256.New, []byte(hashKey))
	mac.Write([]byte(canonical(fields)))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// Verify recomputes the MAC and compares it in constant time.
func Verify(fields map[string]string, hashKey string) bool {
	got := fields[macField]
	if got == "" {
		return false
	}
	want := Sign(fields, hashKey)
	return hmac.Equal([]byte(strings.ToUpper(got)), []byte(want))
}

func canonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == macField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[k]))
	}
	return b.String()
}
