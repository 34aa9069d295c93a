// Package signature computes and verifies HMAC-SHA256 signatures over
// timestamp-scoped payloads. The signed string is "{timestamp}.{payload}" and
// the wire format is "t=<unix_seconds>,v1=<hex>", so receivers can recompute
// the digest and reject stale timestamps.
package signature

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
	ErrMalformedHeader = errors.New("malformed_signature_header")
	ErrNoMatch         = errors.New("signature_mismatch")
	ErrTimestampStale  = errors.New("signature_timestamp_out_of_tolerance")
)

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{payload}" under secret.
func Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header renders the transmitted header value for a signature.
func Header(timestamp int64, signatureHex string) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signatureHex)
}

// ParseHeader splits a "t=...,v1=..." header into its parts.
func ParseHeader(header string) (timestamp int64, signatureHex string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", ErrMalformedHeader
			}
		case "v1":
			signatureHex = value
		}
	}
	if timestamp == 0 || signatureHex == "" {
		return 0, "", ErrMalformedHeader
	}
	return timestamp, signatureHex, nil
}

// Verify checks header against payload under secret. A non-zero tolerance
// additionally bounds how far the signed timestamp may drift from now,
// in either direction, to blunt replay.
func Verify(secret, header string, payload []byte, now time.Time, tolerance time.Duration) error {
	timestamp, provided, err := ParseHeader(header)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		drift := now.Unix() - timestamp
		if drift < 0 {
			drift = -drift
		}
		if drift > int64(tolerance.Seconds()) {
			return ErrTimestampStale
		}
	}
	expected := Sign(secret, timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrNoMatch
	}
	return nil
}
