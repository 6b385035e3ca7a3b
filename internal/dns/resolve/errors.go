// Package resolve implements the iterative root-to-authority resolution
// walk: CNAME following, glue-record fast path, and recursive NS-hostname
// resolution when glue is absent.
package resolve

import "errors"

// ErrTimeout is returned when an upstream query exceeds its read or write
// deadline. The caller treats this the same as any other failed hop.
var ErrTimeout = errors.New("resolve: upstream query timed out")

// ErrMaxHops is returned when a single resolution walk exceeds its hop
// budget without reaching an answer or NXDOMAIN, the signature of a
// referral loop or an adversarial zone that never terminates.
var ErrMaxHops = errors.New("resolve: exceeded maximum hop count")

// ErrMaxDepth is returned when glueless NS resolution recurses past the
// configured depth limit, guarding the call stack against a zone crafted
// to resolve NS hostnames that themselves require NS resolution forever.
var ErrMaxDepth = errors.New("resolve: exceeded maximum recursion depth")
