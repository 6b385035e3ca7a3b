package resolve

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nilroute/resolverd/internal/dns/packet"
)

func newTestResolver(queryFn QueryFunc) *Resolver {
	r := New(queryFn, nil)
	r.RootHints = []string{"192.0.2.1"} // single deterministic root for tests
	return r
}

func nxdomainPacket() *packet.DNSPacket {
	return &packet.DNSPacket{Header: packet.DNSHeader{ResCode: uint8(packet.NXDOMAIN)}}
}

// Property 7: a CNAME-only answer triggers a follow-up query for the CNAME
// target, against the same ns.
func TestResolveFollowsCNAMEAtSameNS(t *testing.T) {
	var queriedServers []string
	var queriedNames []string

	resolver := newTestResolver(func(ctx context.Context, server, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
		queriedServers = append(queriedServers, server)
		queriedNames = append(queriedNames, name)

		if name == "a.example.com" {
			return &packet.DNSPacket{
				Header: packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
				Answers: []packet.DNSRecord{
					{Name: "a.example.com", Type: packet.CNAME, Host: "b.example.com"},
				},
			}, nil
		}
		if name == "b.example.com" {
			return &packet.DNSPacket{
				Header:  packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
				Answers: []packet.DNSRecord{{Name: "b.example.com", Type: packet.A, IP: net.IPv4(1, 2, 3, 4)}},
			}, nil
		}
		t.Fatalf("unexpected query for %q", name)
		return nil, nil
	})

	resp, err := resolver.Resolve(context.Background(), "a.example.com", packet.A)
	require.NoError(t, err)
	require.True(t, resp.HasA())

	require.Len(t, queriedNames, 2)
	require.Equal(t, "b.example.com", queriedNames[1])
	require.Equal(t, queriedServers[0], queriedServers[1])
}

// Property 8: glue in the additional section drives the next query's ns.
func TestResolveGlueFastPath(t *testing.T) {
	called := map[string]int{}

	resolver := newTestResolver(func(ctx context.Context, server, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
		called[server]++
		switch server {
		case "192.0.2.1:53":
			return &packet.DNSPacket{
				Header: packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
				Authorities: []packet.DNSRecord{
					{Name: "com", Type: packet.NS, Host: "a.gtld-servers.net"},
				},
				Resources: []packet.DNSRecord{
					{Name: "a.gtld-servers.net", Type: packet.A, IP: net.IPv4(192, 5, 6, 30)},
				},
			}, nil
		case "192.5.6.30:53":
			return &packet.DNSPacket{
				Header:  packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
				Answers: []packet.DNSRecord{{Name: "example.com", Type: packet.A, IP: net.IPv4(9, 9, 9, 9)}},
			}, nil
		}
		t.Fatalf("unexpected server %q", server)
		return nil, nil
	})

	resp, err := resolver.Resolve(context.Background(), "example.com", packet.A)
	require.NoError(t, err)
	ip, ok := resp.FirstA()
	require.True(t, ok)
	require.Equal(t, net.IPv4(9, 9, 9, 9).To4(), ip.To4())
	require.Equal(t, 1, called["192.5.6.30:53"])
}

// Property 9: an NS with no glue triggers a recursive sub-resolve of the NS
// hostname; its first A becomes the next ns.
func TestResolveGluelessSlowPath(t *testing.T) {
	resolver := newTestResolver(func(ctx context.Context, server, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
		switch {
		case server == "192.0.2.1:53" && name == "example.com":
			return &packet.DNSPacket{
				Header: packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
				Authorities: []packet.DNSRecord{
					{Name: "example.com", Type: packet.NS, Host: "ns1.elsewhere.net"},
				},
			}, nil
		case server == "192.0.2.1:53" && name == "ns1.elsewhere.net":
			// the recursive sub-resolve starts again from the root hint
			return &packet.DNSPacket{
				Header:  packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
				Answers: []packet.DNSRecord{{Name: "ns1.elsewhere.net", Type: packet.A, IP: net.IPv4(203, 0, 113, 5)}},
			}, nil
		case server == "203.0.113.5:53" && name == "example.com":
			return &packet.DNSPacket{
				Header:  packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
				Answers: []packet.DNSRecord{{Name: "example.com", Type: packet.A, IP: net.IPv4(8, 8, 8, 8)}},
			}, nil
		}
		t.Fatalf("unexpected query server=%q name=%q", server, name)
		return nil, nil
	})

	resp, err := resolver.Resolve(context.Background(), "example.com", packet.A)
	require.NoError(t, err)
	ip, ok := resp.FirstA()
	require.True(t, ok)
	require.Equal(t, net.IPv4(8, 8, 8, 8).To4(), ip.To4())
}

// Property 10: an NS whose domain is not a suffix of qname must not be
// selected — exercised indirectly through IterNS in the packet package, and
// here through a response where the only NS present is a non-suffix.
func TestResolveIgnoresNonSuffixNS(t *testing.T) {
	resolver := newTestResolver(func(ctx context.Context, server, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
		return &packet.DNSPacket{
			Header: packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
			Authorities: []packet.DNSRecord{
				{Name: "unrelated.net", Type: packet.NS, Host: "ns1.unrelated.net"},
			},
			Resources: []packet.DNSRecord{
				{Name: "ns1.unrelated.net", Type: packet.A, IP: net.IPv4(1, 1, 1, 1)},
			},
		}, nil
	})

	resp, err := resolver.Resolve(context.Background(), "example.com", packet.A)
	require.NoError(t, err)
	// No usable referral or answer: the resolver gives up and returns the
	// last response verbatim instead of looping forever on a bad referral.
	require.False(t, resp.HasA())
}

// S6: an NXDOMAIN response terminates immediately with no further queries.
func TestResolveTerminatesOnNXDOMAIN(t *testing.T) {
	queries := 0
	resolver := newTestResolver(func(ctx context.Context, server, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
		queries++
		return nxdomainPacket(), nil
	})

	resp, err := resolver.Resolve(context.Background(), "nonexistent.example", packet.A)
	require.NoError(t, err)
	require.Equal(t, uint8(packet.NXDOMAIN), resp.Header.ResCode)
	require.Equal(t, 1, queries)
}

// A referral loop (NS always points back to the same unresolved host) must
// fail with ErrMaxHops rather than spin forever.
func TestResolveHopLimitStopsReferralLoop(t *testing.T) {
	resolver := newTestResolver(func(ctx context.Context, server, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
		return &packet.DNSPacket{
			Header: packet.DNSHeader{ResCode: uint8(packet.NOERROR)},
			Authorities: []packet.DNSRecord{
				{Name: "example.com", Type: packet.NS, Host: "ns.example.com"},
			},
			Resources: []packet.DNSRecord{
				{Name: "ns.example.com", Type: packet.A, IP: net.IPv4(10, 0, 0, 1)},
			},
		}, nil
	})

	_, err := resolver.Resolve(context.Background(), "example.com", packet.A)
	require.ErrorIs(t, err, ErrMaxHops)
}

func TestResolveAllRootsFailReturnsWrappedError(t *testing.T) {
	resolver := New(func(ctx context.Context, server, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
		return nil, ErrTimeout
	}, nil)
	resolver.RootHints = []string{"192.0.2.1", "192.0.2.2"}

	_, err := resolver.Resolve(context.Background(), "example.com", packet.A)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTimeout)
}
