package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cashflow/pix-gateway/internal/core"
)

// flexInt accepts both JSON numbers and numeric strings
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(n)
	return nil
}

// flexString accepts both JSON strings and numbers
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexString(strings.Trim(s, `"`))
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime returns nil for empty or unparseable gateway dates
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// tokenVerifier compares a shared secret sent in header
func tokenVerifier(header, secret string) func(http.Header, []byte) error {
	return func(h http.Header, _ []byte) error {
		if secret == "" {
			return nil
		}
		got := h.Get(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return fmt.Errorf("%w: bad %s", core.ErrUnauthorized, header)
		}
		return nil
	}
}

// hmacVerifier checks a hex HMAC-SHA256 of the body sent in header
func hmacVerifier(header, secret string) func(http.Header, []byte) error {
	return func(h http.Header, body []byte) error {
		if secret == "" {
			return nil
		}
		sig := h.Get(header)
		if sig == "" {
			return fmt.Errorf("%w: missing %s", core.ErrUnauthorized, header)
		}
		return verifyHMAC(secret, body, sig)
	}
}

// superPayBRVerifier accepts a valid X-SuperPay-Signature, or, when no
// signature is sent, a userid header matching the configured account
func superPayBRVerifier(secret, userID string) func(http.Header, []byte) error {
	signed := hmacVerifier(SuperPayBRSignatureHeader, secret)
	account := tokenVerifier(SuperPayBRUserIDHeader, userID)
	return func(h http.Header, body []byte) error {
		switch {
		case secret == "" && userID == "":
			return nil
		case h.Get(SuperPayBRSignatureHeader) != "" && secret != "":
			return signed(h, body)
		case userID != "":
			return account(h, body)
		}
		return signed(h, body)
	}
}

func verifyHMAC(secret string, body []byte, sig string) error {
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected)) {
		return fmt.Errorf("%w: signature mismatch", core.ErrUnauthorized)
	}
	return nil
}

// Sign returns the signature a SuperPayBR webhook would carry for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func noAuth(http.Header, []byte) error { return nil }
