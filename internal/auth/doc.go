// Package auth handles the two authentication boundaries of the prospector.
//
// SignatureVerifier authenticates inbound interaction events from the
// notification channel: HMAC-SHA256 over "v0:{timestamp}:{raw_body}" with
// a shared signing secret, rejected when the timestamp drifts more than
// five minutes from the local clock. Verification happens before any
// state is read.
//
// JWTVerifier authenticates operator API requests with HS256-signed
// bearer tokens; RequireToken is the corresponding HTTP middleware.
package auth
