// Package dedupe provides a small TTL cache used to suppress redelivered
// interaction events before they reach the approval queue. It is a
// best-effort optimization: the queue's status transitions remain the
// authoritative duplicate check.
package dedupe
