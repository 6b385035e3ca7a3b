package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"

	"github.com/nilroute/resolverd/internal/dns/packet"
)

// QueryFunc sends a single iterative (RD=false, for upstream authorities)
// or recursion-desired query to server and returns the parsed response.
type QueryFunc func(ctx context.Context, server string, name string, qtype packet.QueryType) (*packet.DNSPacket, error)

// defaultRootHints lists all 13 IANA root server addresses. Resolve shuffles
// this list and fails over across it rather than hardcoding a single root,
// so a single unreachable root doesn't fail every query.
var defaultRootHints = []string{
	"198.41.0.4",     // a.root-servers.net
	"170.247.170.2",  // b.root-servers.net
	"192.33.4.12",    // c.root-servers.net
	"199.7.91.13",    // d.root-servers.net
	"192.203.230.10", // e.root-servers.net
	"192.5.5.241",    // f.root-servers.net
	"192.112.36.4",   // g.root-servers.net
	"198.97.190.53",  // h.root-servers.net
	"192.36.148.17",  // i.root-servers.net
	"192.58.128.30",  // j.root-servers.net
	"193.0.14.129",   // k.root-servers.net
	"199.7.83.42",    // l.root-servers.net
	"202.12.27.33",   // m.root-servers.net
}

const (
	// maxHops bounds a single root-to-answer walk. Not in the source
	// algorithm; implemented as a hard cap per the hardening recommendation.
	maxHops = 16
	// maxDepth bounds glueless NS resolution re-entering Resolve. An
	// adversarial zone that never offers glue would otherwise recurse
	// without bound.
	maxDepth = 8
)

// Resolver walks the DNS hierarchy from a root hint to an authoritative
// answer, following CNAME chains and resolving NS hostnames that lack glue.
type Resolver struct {
	RootHints []string
	QueryFn   QueryFunc
	Logger    *slog.Logger
}

// New constructs a Resolver with the standard 13-server root hint list.
func New(queryFn QueryFunc, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		RootHints: defaultRootHints,
		QueryFn:   queryFn,
		Logger:    logger,
	}
}

func (r *Resolver) shuffledRoots() []string {
	hints := r.RootHints
	if len(hints) == 0 {
		hints = defaultRootHints
	}
	shuffled := make([]string, len(hints))
	copy(shuffled, hints)
	// #nosec G404 -- shuffling root hints for load distribution, not a security decision
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// Resolve walks from a root hint to an answer for (qname, qtype), following
// CNAME chains and glue/glueless NS referrals. The response assembler calls
// ResolveWithHops, which runs the same walk and also reports the hop count.
func (r *Resolver) Resolve(ctx context.Context, qname string, qtype packet.QueryType) (*packet.DNSPacket, error) {
	resp, _, err := r.ResolveWithHops(ctx, qname, qtype)
	return resp, err
}

// ResolveWithHops behaves like Resolve but also reports the number of
// upstream queries the winning walk took, for the hop-count metric.
func (r *Resolver) ResolveWithHops(ctx context.Context, qname string, qtype packet.QueryType) (*packet.DNSPacket, int, error) {
	return r.resolveAtDepth(ctx, qname, qtype, 0)
}

func (r *Resolver) resolveAtDepth(ctx context.Context, qname string, qtype packet.QueryType, depth int) (*packet.DNSPacket, int, error) {
	if depth > maxDepth {
		return nil, 0, ErrMaxDepth
	}

	var lastErr error
	for _, rootIP := range r.shuffledRoots() {
		resp, hops, err := r.walk(ctx, rootIP, qname, qtype, depth)
		if err != nil {
			lastErr = err
			r.Logger.Warn("resolve: root failed over", "root", rootIP, "qname", qname, "error", err)
			continue
		}
		return resp, hops, nil
	}
	return nil, 0, fmt.Errorf("resolve: exhausted all root hints: %w", lastErr)
}

// walk performs the iterative root-to-authority loop described in the
// resolution algorithm: query, follow a CNAME at the same ns, take the glue
// fast path, fall back to the glueless slow path, or surface the last
// response once referrals run out.
func (r *Resolver) walk(ctx context.Context, startNS, qname string, qtype packet.QueryType, depth int) (*packet.DNSPacket, int, error) {
	ns := startNS
	name := qname

	for hops := 0; ; hops++ {
		if hops >= maxHops {
			return nil, 0, ErrMaxHops
		}

		server := net.JoinHostPort(ns, "53")
		r.Logger.Info("resolve: query", "name", name, "qtype", qtype.String(), "ns", ns, "hop", hops, "depth", depth)

		resp, err := r.QueryFn(ctx, server, name, qtype)
		if err != nil {
			return nil, 0, err
		}

		if len(resp.Answers) > 0 && packet.ResultCodeFromNum(resp.Header.ResCode) == packet.NOERROR {
			if cname, ok := resp.FirstCNAME(); ok {
				name = cname
				continue
			}
			if resp.HasA() {
				return resp, hops + 1, nil
			}
		}

		if packet.ResultCodeFromNum(resp.Header.ResCode) == packet.NXDOMAIN {
			return resp, hops + 1, nil
		}

		if ip, ok := resp.ResolvedNS(name); ok {
			ns = ip.String()
			continue
		}

		if host, ok := resp.UnresolvedNS(name); ok {
			sub, _, err := r.resolveAtDepth(ctx, host, packet.A, depth+1)
			if err == nil {
				if ip, ok := sub.FirstA(); ok {
					ns = ip.String()
					continue
				}
			} else {
				r.Logger.Warn("resolve: glueless NS resolution failed", "host", host, "error", err)
			}
		}

		return resp, hops + 1, nil
	}
}
