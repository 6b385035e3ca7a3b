// Package ports defines the interfaces the resolver core depends on,
// implemented by the adapters package.
package ports

import (
	"context"

	"github.com/nilroute/resolverd/internal/core/domain"
)

// AuditRepository persists a record of completed resolutions. It is
// write-only from the resolver's perspective: nothing in the resolution
// path reads from it, so it can never become a disguised answer cache.
type AuditRepository interface {
	Record(ctx context.Context, entry domain.ResolutionLog) error
	Ping(ctx context.Context) error
}

// DedupCoordinator flags when a burst of identical in-flight queries is
// already being resolved by another worker or process. It is a claim lock,
// not a result cache or a waiter queue: a caller that loses the race still
// performs its own upstream walk, it just gets counted as a duplicate for
// observability. It never stores a completed answer past the in-flight
// window.
type DedupCoordinator interface {
	// Lock attempts to claim ownership of (name, qtype) for a TTL chosen by
	// the implementation.
	// ok is true if this caller is the first to claim it; false means
	// another caller already holds the claim, and the caller should record
	// the duplicate and proceed with its own resolution regardless.
	Lock(ctx context.Context, name string, qtype string) (ok bool, err error)
	// Unlock releases a claim taken by Lock, normally via defer.
	Unlock(ctx context.Context, name string, qtype string) error
	Ping(ctx context.Context) error
}

// RoutingEngine advertises or withdraws the resolver's anycast VIP over BGP.
type RoutingEngine interface {
	Start(ctx context.Context, localASN, peerASN uint32, peerIP string) error
	Announce(ctx context.Context, vip string) error
	Withdraw(ctx context.Context, vip string) error
	Stop() error
}

// VIPManager binds or unbinds the anycast VIP on the local network stack.
type VIPManager interface {
	Bind(ctx context.Context, vip, iface string) error
	Unbind(ctx context.Context, vip, iface string) error
}

// HealthChecker reports the health of this node's backing dependencies,
// keyed by dependency name. A non-nil value means that dependency is
// unhealthy. AnycastManager uses this, not a DNS-serving health check,
// since a recursive resolver has no backend database to go unhealthy on a
// per-zone basis.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}
