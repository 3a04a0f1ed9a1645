// Package cache holds upstream response payloads in memory for a fixed TTL.
//
// # Overview
//
// A Store maps canonical request keys (see Key) to the raw payload of the last
// successful response. The Store itself is deliberately dumb: Get returns
// whatever is stored, and callers decide validity with Valid or use Lookup,
// which combines both steps.
//
// # Expiry and Sweeping
//
// Entries are valid while their age is below the TTL (five minutes by
// default). Nothing runs in the background. Instead, every Set that pushes the
// entry count past the sweep threshold (100 by default) scans the map and
// removes every expired entry. The threshold is a trigger rather than a
// capacity: live entries are never evicted, so a busy process can hold more
// than the threshold.
//
// # Keys
//
// Key sorts parameter names before serializing, so {a:1,b:2} and {b:2,a:1}
// produce the same key, and it can exclude transport-only fields such as the
// credential parameter.
//
// # Thread Safety
//
// All operations share a single sync.RWMutex. Concurrent writers of the same
// key race benignly: the last Set wins.
package cache
