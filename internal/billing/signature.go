// AngelaMos | 2026
// signature.go

package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleSignature   = errors.New("signature timestamp outside tolerance")
)

// VerifySignature checks a Stripe-Signature header of the form
// t=<unix>,v1=<hex>[,v1=<hex>...]. Any v1 entry matching
// HMAC-SHA256(secret, "<t>.<payload>") is accepted.
func VerifySignature(
	payload []byte,
	header, secret string,
	tolerance time.Duration,
	now time.Time,
) error {
	if header == "" {
		return ErrMissingSignature
	}

	var (
		timestamp  int64
		signatures [][]byte
		haveTS     bool
	)

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("parse timestamp: %w", ErrInvalidSignature)
			}
			timestamp, haveTS = ts, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}

	if !haveTS || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	expected := computeSignature(timestamp, payload, secret)

	matched := false
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return ErrStaleSignature
		}
	}

	return nil
}

func computeSignature(timestamp int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
