// ABOUTME: Tests for interaction signature verification
// ABOUTME: Covers valid signatures, freshness window edges, and mismatch rejection

package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestVerifier(secret string, now time.Time) *SignatureVerifier {
	v := NewSignatureVerifier(secret)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_ValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("shhh", now)

	body := []byte(`payload=%7B%22actions%22%3A%5B%5D%7D`)
	ts := fmt.Sprintf("%d", now.Unix())
	sig := Sign([]byte("shhh"), ts, body)

	assert.NoError(t, v.Verify(ts, sig, body))
}

func TestVerify_MissingParts(t *testing.T) {
	v := newTestVerifier("shhh", time.Now())

	assert.ErrorIs(t, v.Verify("", "v0=abc", []byte("x")), ErrMissingSignature)
	assert.ErrorIs(t, v.Verify("123", "", []byte("x")), ErrMissingSignature)
}

func TestVerify_MalformedTimestamp(t *testing.T) {
	v := newTestVerifier("shhh", time.Now())
	assert.ErrorIs(t, v.Verify("not-a-number", "v0=abc", []byte("x")), ErrBadTimestamp)
}

func TestVerify_StaleTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("shhh", now)

	body := []byte("x")

	// 301 seconds old: rejected even with a correct signature.
	stale := fmt.Sprintf("%d", now.Add(-301*time.Second).Unix())
	sig := Sign([]byte("shhh"), stale, body)
	assert.ErrorIs(t, v.Verify(stale, sig, body), ErrStaleTimestamp)

	// 299 seconds old: accepted.
	fresh := fmt.Sprintf("%d", now.Add(-299*time.Second).Unix())
	sig = Sign([]byte("shhh"), fresh, body)
	assert.NoError(t, v.Verify(fresh, sig, body))

	// Future drift counts too.
	future := fmt.Sprintf("%d", now.Add(301*time.Second).Unix())
	sig = Sign([]byte("shhh"), future, body)
	assert.ErrorIs(t, v.Verify(future, sig, body), ErrStaleTimestamp)
}

func TestVerify_SignatureMismatch(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("shhh", now)

	ts := fmt.Sprintf("%d", now.Unix())
	body := []byte("x")

	// Wrong secret
	sig := Sign([]byte("other-secret"), ts, body)
	assert.ErrorIs(t, v.Verify(ts, sig, body), ErrSignatureMismatch)

	// Tampered body
	sig = Sign([]byte("shhh"), ts, []byte("y"))
	assert.ErrorIs(t, v.Verify(ts, sig, body), ErrSignatureMismatch)
}
