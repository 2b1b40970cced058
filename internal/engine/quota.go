package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxRewrites is the default rewrite quota per compilation unit.
const DefaultMaxRewrites = 10000

// QuotaEnforcer counts the rewrites performed for one compilation unit and
// enforces a maximum.
//
// The rule set is terminating on its own; the quota turns an unexpected
// rewrite loop into an error instead of a hang.
type QuotaEnforcer struct {
	maxRewrites int
	current     int
}

// NewQuotaEnforcer creates an enforcer allowing maxRewrites rewrites.
func NewQuotaEnforcer(maxRewrites int) *QuotaEnforcer {
	return &QuotaEnforcer{maxRewrites: maxRewrites}
}

// Check counts one rewrite and returns a RewritesExceededError once the
// count passes the limit.
func (q *QuotaEnforcer) Check(unit string) error {
	q.current++
	if q.current > q.maxRewrites {
		return &RewritesExceededError{
			Unit:     unit,
			Rewrites: q.current,
			Limit:    q.maxRewrites,
		}
	}
	return nil
}

// Reset sets the count back to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the number of rewrites counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxRewrites returns the limit.
func (q *QuotaEnforcer) MaxRewrites() int {
	return q.maxRewrites
}

// RewritesExceededError is returned when a unit exceeds its rewrite quota.
type RewritesExceededError struct {
	Unit     string
	Rewrites int
	Limit    int
}

// Error implements the error interface.
func (e *RewritesExceededError) Error() string {
	return fmt.Sprintf("unit %s exceeded rewrite quota: %d rewrites > %d limit",
		e.Unit, e.Rewrites, e.Limit)
}

// IsRewritesExceededError reports whether err is or wraps a
// RewritesExceededError.
func IsRewritesExceededError(err error) bool {
	var re *RewritesExceededError
	return errors.As(err, &re)
}
