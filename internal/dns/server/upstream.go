package server

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/nilroute/resolverd/internal/dns/packet"
	"github.com/nilroute/resolverd/internal/dns/resolve"
)

// upstreamTimeout bounds both the write and the read of a single query to
// an authoritative server.
const upstreamTimeout = 1 * time.Second

// SendUpstreamQuery implements resolve.QueryFunc: it opens an ephemeral UDP
// socket to server, sends an iterative question for name/qtype, and parses
// the reply. The transaction ID is a cryptographically random value and a
// mismatched reply ID is rejected, strengthening a plain unauthenticated
// iterative exchange without changing its shape.
func SendUpstreamQuery(ctx context.Context, server string, name string, qtype packet.QueryType) (*packet.DNSPacket, error) {
	conn, err := net.DialTimeout("udp", server, upstreamTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", server, err)
	}
	defer func() { _ = conn.Close() }()

	req := packet.NewDNSPacket()
	req.Header.ID = generateTransactionID()
	req.Header.Questions = 1
	req.Header.RecursionDesired = true
	req.Questions = append(req.Questions, *packet.NewDNSQuestion(name, qtype))

	buf := packet.GetBuffer()
	defer packet.PutBuffer(buf)
	if err := req.Write(buf); err != nil {
		return nil, fmt.Errorf("serialize query: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(upstreamTimeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(buf.Buf[:buf.Position()]); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("%w: %s", resolve.ErrTimeout, server)
		}
		return nil, fmt.Errorf("send query: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(upstreamTimeout)); err != nil {
		return nil, err
	}
	respRaw := make([]byte, packet.MaxPacketSize)
	n, err := conn.Read(respRaw)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("%w: %s", resolve.ErrTimeout, server)
		}
		return nil, fmt.Errorf("read reply: %w", err)
	}

	respBuf := packet.GetBuffer()
	defer packet.PutBuffer(respBuf)
	respBuf.Load(respRaw[:n])

	resp := packet.NewDNSPacket()
	if err := resp.FromBuffer(respBuf); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}

	if resp.Header.ID != req.Header.ID {
		return nil, fmt.Errorf("transaction id mismatch: sent %d, got %d", req.Header.ID, resp.Header.ID)
	}

	return resp, nil
}

func generateTransactionID() uint16 {
	var id uint16
	_ = binary.Read(rand.Reader, binary.BigEndian, &id)
	return id
}
