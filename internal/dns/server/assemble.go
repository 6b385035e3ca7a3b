package server

import (
	"context"
	"time"

	"github.com/nilroute/resolverd/internal/core/domain"
	"github.com/nilroute/resolverd/internal/dns/packet"
	"github.com/nilroute/resolverd/internal/infrastructure/metrics"
)

// Handle builds the reply datagram for a single request. It is the only
// site that translates a parse failure or resolver error into a
// client-visible rcode.
func (s *Server) Handle(ctx context.Context, data []byte, clientIP, correlationID string) []byte {
	start := time.Now()

	reqBuf := packet.GetBuffer()
	defer packet.PutBuffer(reqBuf)
	reqBuf.Load(data)

	request := packet.NewDNSPacket()
	if err := request.FromBuffer(reqBuf); err != nil {
		s.Logger.Warn("failed to parse request", "correlation_id", correlationID, "client", clientIP, "error", err)
		return s.serializeReply(s.errorReply(0, packet.SERVFAIL))
	}

	reply := packet.NewDNSPacket()
	reply.Header.ID = request.Header.ID
	reply.Header.RecursionDesired = true
	reply.Header.RecursionAvailable = true
	reply.Header.Response = true

	if len(request.Questions) == 0 {
		reply.Header.ResCode = uint8(packet.FORMERR)
		return s.serializeReply(reply)
	}

	// Exactly one question is handled even if more are present.
	question := request.Questions[0]
	logger := s.Logger.With("correlation_id", correlationID, "client", clientIP, "qname", question.Name, "qtype", question.QType.String())

	if err := domain.ValidateQueryName(question.Name); err != nil {
		logger.Warn("rejected malformed query name", "error", err)
		reply.Header.ResCode = uint8(packet.FORMERR)
		reply.Questions = append(reply.Questions, question)
		return s.serializeReply(reply)
	}

	// The dedup claim only flags overlap for observability; every caller,
	// lock winner or not, still walks the resolver below on its own.
	if s.Dedup != nil {
		ok, err := s.Dedup.Lock(ctx, question.Name, question.QType.String())
		if err == nil && ok {
			defer func() { _ = s.Dedup.Unlock(ctx, question.Name, question.QType.String()) }()
		} else if err == nil && !ok {
			metrics.DedupHits.Inc()
		}
	}

	resolved, hops, err := s.Resolver.ResolveWithHops(ctx, question.Name, question.QType)
	reply.Questions = append(reply.Questions, question)

	rcode := uint8(packet.SERVFAIL)
	if err != nil {
		logger.Warn("resolution failed", "error", err)
		reply.Header.ResCode = uint8(packet.SERVFAIL)
	} else {
		reply.Header.ResCode = resolved.Header.ResCode
		reply.Answers = resolved.Answers
		reply.Authorities = resolved.Authorities
		reply.Resources = resolved.Resources
		rcode = resolved.Header.ResCode
	}

	duration := time.Since(start)
	metrics.QueriesTotal.WithLabelValues(question.QType.String(), packet.ResultCodeFromNum(rcode).String()).Inc()
	metrics.QueryDuration.Observe(duration.Seconds())
	if hops > 0 {
		metrics.HopCount.Observe(float64(hops))
	}

	if s.Audit != nil {
		entry := domain.ResolutionLog{
			CorrelationID: correlationID,
			ClientIP:      clientIP,
			QName:         question.Name,
			QType:         question.QType.String(),
			RCode:         rcode,
			Hops:          hops,
			DurationMS:    duration.Milliseconds(),
		}
		if err := s.Audit.Record(ctx, entry); err != nil {
			logger.Warn("failed to record audit entry", "error", err)
		}
	}

	return s.serializeReply(reply)
}

func (s *Server) errorReply(id uint16, rcode packet.ResultCode) *packet.DNSPacket {
	reply := packet.NewDNSPacket()
	reply.Header.ID = id
	reply.Header.Response = true
	reply.Header.RecursionAvailable = true
	reply.Header.ResCode = uint8(rcode)
	return reply
}

// serializeReply writes reply into a 4096-octet buffer and truncates to the
// bytes actually used.
func (s *Server) serializeReply(reply *packet.DNSPacket) []byte {
	buf := packet.GetBuffer()
	defer packet.PutBuffer(buf)
	if err := reply.Write(buf); err != nil {
		s.Logger.Error("failed to serialize reply", "error", err)
		return nil
	}
	out := make([]byte, buf.Position())
	copy(out, buf.Buf[:buf.Position()])
	return out
}
