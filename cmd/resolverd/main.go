// Command resolverd runs the recursive DNS resolver: a UDP listener, the
// root-to-authority resolver, and the optional audit/dedup/anycast
// infrastructure around it.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nilroute/resolverd/internal/adapters/dedup"
	"github.com/nilroute/resolverd/internal/adapters/repository"
	"github.com/nilroute/resolverd/internal/adapters/routing"
	"github.com/nilroute/resolverd/internal/core/ports"
	"github.com/nilroute/resolverd/internal/core/services"
	"github.com/nilroute/resolverd/internal/dns/resolve"
	"github.com/nilroute/resolverd/internal/dns/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("resolverd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	resolver := resolve.New(server.SendUpstreamQuery, logger)

	var audit ports.AuditRepository
	dbURL := os.Getenv("AUDIT_DATABASE_URL")
	if dbURL != "" {
		db, err := sql.Open("pgx", dbURL)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetConnMaxLifetime(10 * time.Minute)
		defer func() { _ = db.Close() }()
		audit = repository.NewAuditPostgres(db)
		logger.Info("audit logging enabled", "database_url_set", true)
	}

	var dedupCoordinator ports.DedupCoordinator
	redisAddr := os.Getenv("DEDUP_REDIS_ADDR")
	if redisAddr != "" {
		coord := dedup.NewRedisCoordinator(redisAddr, os.Getenv("DEDUP_REDIS_PASSWORD"), 0)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := coord.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("connect to dedup redis at %s: %w", redisAddr, err)
		}
		defer func() { _ = coord.Close() }()
		dedupCoordinator = coord
		logger.Info("in-flight dedup enabled", "redis_addr", redisAddr)
	}

	dnsAddr := os.Getenv("DNS_ADDR")
	if dnsAddr == "" {
		dnsAddr = "0.0.0.0:5300"
	}
	srv := server.NewServer(dnsAddr, resolver, logger)
	srv.Audit = audit
	srv.Dedup = dedupCoordinator

	var routingAdapter *routing.GoBGPAdapter
	var anycastMgr *services.AnycastManager
	if os.Getenv("ANYCAST_ENABLED") == "true" {
		vip := os.Getenv("ANYCAST_VIP")
		peerIP := os.Getenv("BGP_PEER_IP")
		if vip == "" || peerIP == "" {
			return fmt.Errorf("ANYCAST_VIP and BGP_PEER_IP must be set when ANYCAST_ENABLED=true")
		}

		routingAdapter = routing.NewGoBGPAdapter(logger)
		vipAdapter := routing.NewSystemVIPAdapter(logger)

		iface := os.Getenv("ANYCAST_INTERFACE")
		if iface == "" {
			iface = "lo"
		}
		localASN := getEnvUint32("ANYCAST_LOCAL_ASN", 65001)
		peerASN := getEnvUint32("BGP_PEER_ASN", 65000)

		health := services.DependencyHealth{Audit: audit, Dedup: dedupCoordinator}
		anycastMgr = services.NewAnycastManager(health, routingAdapter, vipAdapter, vip, iface, logger)

		errChan := make(chan error, 1)
		go func() {
			if err := routingAdapter.Start(ctx, localASN, peerASN, peerIP); err != nil {
				errChan <- fmt.Errorf("failed to start BGP speaker: %w", err)
				return
			}
			anycastMgr.Start(ctx)
		}()

		select {
		case err := <-errChan:
			return err
		case <-time.After(500 * time.Millisecond):
		}
	}

	go func() {
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("resolver listener failed", "error", err)
		}
	}()

	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("resolverd started", "dns_addr", dnsAddr, "metrics_addr", metricsAddr)

	<-ctx.Done()
	logger.Info("shutting down resolverd")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	if routingAdapter != nil {
		if err := routingAdapter.Stop(); err != nil {
			logger.Error("BGP speaker stop failed", "error", err)
		}
	}

	return nil
}

func getEnvUint32(key string, def uint32) uint32 {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	u, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return def
	}
	return uint32(u)
}
