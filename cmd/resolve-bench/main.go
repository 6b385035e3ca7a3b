// Command resolve-bench drives a UDP load test against a running resolver,
// reporting throughput and latency percentiles.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nilroute/resolverd/internal/dns/packet"
)

var tlds = []string{"com", "net", "org", "io", "dev", "ai", "cloud", "gov", "edu", "me", "info"}

type stats struct {
	total, success, errors   uint64
	bytesSent, bytesReceived uint64
	latencies                chan time.Duration
}

func main() {
	target := flag.String("server", "127.0.0.1:10053", "resolver address to load")
	concurrency := flag.Int("c", 10, "concurrent workers")
	count := flag.Int("n", 1000, "total queries to send")
	hotNames := flag.Uint64("pool", 100000, "distinct query-name pool size")
	zipfS := flag.Float64("zipf-s", 1.1, "Zipf distribution skew (s > 1 is more hot-spotted)")
	flag.Parse()

	fmt.Printf("resolve-bench: %d queries, %d workers, name pool %d, target %s\n", *count, *concurrency, *hotNames, *target)

	st := &stats{latencies: make(chan time.Duration, *count)}
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(*concurrency)
	perWorker := *count / *concurrency
	for i := 0; i < *concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			runWorker(*target, perWorker, workerID, *hotNames, *zipfS, st)
		}(i)
	}
	wg.Wait()

	duration := time.Since(start)
	close(st.latencies)
	printReport(duration, st, *concurrency)
}

func runWorker(target string, count int, workerID int, rangeLimit uint64, zipfS float64, st *stats) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		fmt.Printf("worker %d: dial failed: %v\n", workerID, err)
		return
	}
	defer conn.Close()

	recvBuf := make([]byte, 1024)
	// #nosec G404 -- synthetic load generation, not a security decision
	r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	zipf := rand.NewZipf(r, zipfS, 1, rangeLimit-1)

	for i := 0; i < count; i++ {
		idx := zipf.Uint64()
		name := fmt.Sprintf("host-%d.%s", idx, tlds[idx%uint64(len(tlds))])

		req := packet.NewDNSPacket()
		req.Header.ID = uint16(r.Uint32())
		req.Header.Questions = 1
		req.Header.RecursionDesired = true
		req.Questions = append(req.Questions, *packet.NewDNSQuestion(name, packet.A))

		buf := packet.NewBytePacketBuffer()
		if err := req.Write(buf); err != nil {
			atomic.AddUint64(&st.errors, 1)
			continue
		}
		data := buf.Buf[:buf.Position()]

		queryStart := time.Now()
		n, err := conn.Write(data)
		if err != nil {
			atomic.AddUint64(&st.errors, 1)
			continue
		}
		atomic.AddUint64(&st.bytesSent, uint64(n))

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err = conn.Read(recvBuf)
		if err != nil {
			atomic.AddUint64(&st.errors, 1)
		} else {
			atomic.AddUint64(&st.success, 1)
			atomic.AddUint64(&st.bytesReceived, uint64(n))
			st.latencies <- time.Since(queryStart)
		}
		atomic.AddUint64(&st.total, 1)
	}
}

func printReport(duration time.Duration, st *stats, concurrency int) {
	qps := float64(st.success) / duration.Seconds()

	var latencies []time.Duration
	for l := range st.latencies {
		latencies = append(latencies, l)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println("\n==================== resolve-bench report ====================")
	fmt.Printf("duration:     %v\n", duration)
	fmt.Printf("concurrency:  %d workers\n", concurrency)
	fmt.Printf("throughput:   %.2f queries/sec\n", qps)
	fmt.Printf("total:        %d  success: %d  errors: %d\n", st.total, st.success, st.errors)
	if st.total > 0 {
		fmt.Printf("reliability:  %.2f%%\n", float64(st.success)/float64(st.total)*100)
	}
	if len(latencies) > 0 {
		fmt.Println("--- latency percentiles ---")
		fmt.Printf("p50: %v  p90: %v  p99: %v  max: %v\n",
			latencies[len(latencies)/2],
			latencies[int(float64(len(latencies))*0.90)],
			latencies[int(float64(len(latencies))*0.99)],
			latencies[len(latencies)-1])
	}
	fmt.Println("================================================================")
}
