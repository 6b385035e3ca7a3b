// Package routing implements BGP routing and VIP management adapters for
// anycasting the resolver's listen address.
package routing

import (
	"context"
	"fmt"
	"log/slog"

	api "github.com/osrg/gobgp/v4/api"
	"github.com/osrg/gobgp/v4/pkg/server"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/nilroute/resolverd/internal/core/ports"
	"github.com/nilroute/resolverd/internal/infrastructure/metrics"
)

// GoBGPAdapter implements the RoutingEngine port using the GoBGP library.
type GoBGPAdapter struct {
	bgpServer *server.BgpServer
	logger    *slog.Logger
}

// NewGoBGPAdapter initializes a new GoBGPAdapter.
func NewGoBGPAdapter(logger *slog.Logger) *GoBGPAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoBGPAdapter{
		bgpServer: server.NewBgpServer(),
		logger:    logger,
	}
}

// Start initializes the GoBGP server and establishes a peering session.
func (a *GoBGPAdapter) Start(ctx context.Context, localASN, peerASN uint32, peerIP string) error {
	go a.bgpServer.Serve()

	if err := a.bgpServer.StartBgp(ctx, &api.StartBgpRequest{
		Global: &api.Global{
			Asn:        localASN,
			RouterId:   "127.0.0.1",
			ListenPort: 179,
		},
	}); err != nil {
		return fmt.Errorf("failed to start BGP server: %w", err)
	}

	if err := a.bgpServer.AddPeer(ctx, &api.AddPeerRequest{
		Peer: &api.Peer{
			Conf: &api.PeerConf{
				NeighborAddress: peerIP,
				PeerAsn:         peerASN,
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to add BGP peer: %w", err)
	}

	a.logger.Info("GoBGP speaker started", "local_asn", localASN, "peer_asn", peerASN, "peer_ip", peerIP)
	return nil
}

// Announce advertises the resolver's anycast VIP via BGP.
func (a *GoBGPAdapter) Announce(ctx context.Context, vip string) error {
	nlri, err := anypb.New(&api.IPAddressPrefix{Prefix: vip, PrefixLen: 32})
	if err != nil {
		return fmt.Errorf("encode nlri for %s: %w", vip, err)
	}
	attrs, err := anypb.New(&api.NextHopAttribute{NextHop: "127.0.0.1"})
	if err != nil {
		return fmt.Errorf("encode next-hop for %s: %w", vip, err)
	}

	_, err = a.bgpServer.AddPath(ctx, &api.AddPathRequest{
		Path: &api.Path{
			Family: &api.Family{Afi: api.Family_AFI_IP, Safi: api.Family_SAFI_UNICAST},
			Nlri:   nlri,
			Pattrs: []*anypb.Any{attrs},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to announce route %s: %w", vip, err)
	}

	metrics.BGPAnnounced.Set(1)
	a.logger.Info("announced anycast VIP", "vip", vip)
	return nil
}

// Withdraw removes the VIP advertisement from BGP.
func (a *GoBGPAdapter) Withdraw(ctx context.Context, vip string) error {
	nlri, err := anypb.New(&api.IPAddressPrefix{Prefix: vip, PrefixLen: 32})
	if err != nil {
		return fmt.Errorf("encode nlri for %s: %w", vip, err)
	}

	if err := a.bgpServer.DeletePath(ctx, &api.DeletePathRequest{
		Path: &api.Path{
			Family: &api.Family{Afi: api.Family_AFI_IP, Safi: api.Family_SAFI_UNICAST},
			Nlri:   nlri,
		},
	}); err != nil {
		return fmt.Errorf("failed to withdraw route %s: %w", vip, err)
	}

	metrics.BGPAnnounced.Set(0)
	a.logger.Warn("withdrew anycast VIP", "vip", vip)
	return nil
}

// Stop gracefully shuts down the BGP server.
func (a *GoBGPAdapter) Stop() error {
	return a.bgpServer.StopBgp(context.Background(), &api.StopBgpRequest{})
}

var _ ports.RoutingEngine = (*GoBGPAdapter)(nil)
