// Package retry re-runs a failing operation a bounded number of times with a
// fixed delay between attempts.
//
// Do makes at most Policy.Attempts calls and returns the last error once they
// are used up. A canceled context ends the loop during the delay.
package retry
