// Package resilience provides the fault-handling primitives applied to
// adapter operations: a circuit breaker, retry with exponential backoff and
// jitter, and a fixed-window rate limiter, plus a Manager that keys all
// three by an arbitrary operation identifier.
//
// State is scoped to the process lifetime. A restart resets every breaker to
// closed and every rate-limit window to empty.
package resilience
