// Package server implements the UDP listener: a single-reader,
// N-worker model that receives queries, dispatches them to the resolver,
// and sends replies.
package server

import (
	"context"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/nilroute/resolverd/internal/core/ports"
	"github.com/nilroute/resolverd/internal/dns/resolve"
	"github.com/nilroute/resolverd/internal/infrastructure/metrics"
)

// udpTask is one received datagram awaiting a worker.
type udpTask struct {
	addr net.Addr
	data []byte
	conn net.PacketConn
}

// Server owns the UDP listeners and worker pool. A single instance is
// shared across every goroutine it spawns; nothing about it is mutated
// once Run starts beyond the queue and listener bookkeeping.
type Server struct {
	Addr          string
	WorkerCount   int
	ListenerCount int // SO_REUSEPORT fan-out; 0 means runtime.NumCPU()
	QueueSize     int

	Resolver *resolve.Resolver
	Audit    ports.AuditRepository
	Dedup    ports.DedupCoordinator
	Logger   *slog.Logger

	queue chan udpTask
}

// NewServer constructs a Server with the spec's default worker count (5)
// scaled by CPU count, the way the teacher scales its own worker pool.
func NewServer(addr string, resolver *resolve.Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Addr:        addr,
		WorkerCount: 5 * runtime.NumCPU(),
		QueueSize:   10000,
		Resolver:    resolver,
		Logger:      logger,
	}
}

// Run binds the listeners and worker pool, blocking until ctx is canceled.
// Listener fan-out uses SO_REUSEPORT so multiple OS threads can each own a
// socket bound to the same address instead of contending on one.
func (s *Server) Run(ctx context.Context) error {
	listenerCount := s.ListenerCount
	if listenerCount <= 0 {
		listenerCount = runtime.NumCPU()
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 10000
	}
	s.queue = make(chan udpTask, s.QueueSize)

	s.Logger.Info("starting resolver listener", "addr", s.Addr, "listeners", listenerCount, "workers", s.WorkerCount)

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			if err := c.Control(func(fd uintptr) {
				ctrlErr = setReusePort(fd)
			}); err != nil {
				return err
			}
			return ctrlErr
		},
	}

	var wg sync.WaitGroup
	conns := make([]net.PacketConn, 0, listenerCount)

	for i := 0; i < listenerCount; i++ {
		conn, err := lc.ListenPacket(ctx, "udp", s.Addr)
		if err != nil {
			s.Logger.Error("failed to start UDP listener", "id", i, "error", err)
			continue
		}
		conns = append(conns, conn)

		wg.Add(1)
		go func(id int, conn net.PacketConn) {
			defer wg.Done()
			s.readLoop(ctx, id, conn)
		}(i, conn)
	}
	if len(conns) == 0 {
		return net.ErrClosed
	}

	for i := 0; i < s.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.udpWorker(ctx)
		}()
	}

	<-ctx.Done()
	for _, conn := range conns {
		_ = conn.Close()
	}
	close(s.queue)
	wg.Wait()
	return ctx.Err()
}

func (s *Server) readLoop(ctx context.Context, id int, conn net.PacketConn) {
	defer conn.Close()
	for {
		buf := make([]byte, 512)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case s.queue <- udpTask{addr: addr, data: data, conn: conn}:
			metrics.QueueDepth.Set(float64(len(s.queue)))
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) udpWorker(ctx context.Context) {
	for task := range s.queue {
		metrics.QueueDepth.Set(float64(len(s.queue)))
		metrics.ActiveWorkers.Inc()
		s.handleUDPTask(ctx, task)
		metrics.ActiveWorkers.Dec()
	}
}

func (s *Server) handleUDPTask(ctx context.Context, task udpTask) {
	clientIP, _, _ := net.SplitHostPort(task.addr.String())
	correlationID := uuid.NewString()

	reply := s.Handle(ctx, task.data, clientIP, correlationID)
	if reply == nil {
		return
	}
	if _, err := task.conn.WriteTo(reply, task.addr); err != nil {
		s.Logger.Warn("failed to send reply", "correlation_id", correlationID, "client", clientIP, "error", err)
	}
}
