// Package main tails a metrics feed server: it fetches a history snapshot,
// then follows the live stream until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"metrics-feed/internal/client"
	"metrics-feed/internal/consumer"
	"metrics-feed/internal/domain"
	"metrics-feed/internal/stats"
)

func main() {
	// Parse flags
	feedURL := flag.String("url", "http://localhost:8080", "Feed server base URL")
	transport := flag.String("transport", "sse", "Stream transport (sse or ws)")
	timeRange := flag.String("time-range", "24h", "History range to fetch before following (24h, 7d, 30d, 90d, 1y, all)")
	windowSize := flag.Int("window", consumer.DefaultWindowSize, "Live points retained for the final summary")
	outputJSON := flag.Bool("json", false, "Output points as JSON")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[feedwatch] ", log.LstdFlags)

	tr, err := domain.ParseTimeRange(*timeRange)
	if err != nil {
		logger.Fatalf("Invalid time range: %v", err)
	}

	source, err := newSource(*transport, *feedURL)
	if err != nil {
		logger.Fatalf("Invalid transport: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Fetch the history snapshot before following the stream
	feedClient := client.New(*feedURL)
	history, err := feedClient.FetchHistory(ctx, tr)
	if err != nil {
		logger.Fatalf("Fetch history: %v", err)
	}
	logger.Printf("History %s: %d points, revenue %.2f, users %d, avg engagement %.2f%%",
		tr, len(history.Data), history.Summary.TotalRevenue, history.Summary.TotalUsers, history.Summary.AvgEngagement)

	// Follow the live stream. A terminal stream error ends the watch; the
	// consumer handles transient drops itself.
	c := consumer.New(source, consumer.Config{
		WindowSize: *windowSize,
		Logger:     logger,
		OnPoint: func(p domain.MetricPoint) {
			printPoint(p, *outputJSON)
		},
		OnState: func(s consumer.State) {
			logger.Printf("Stream %s", s)
			if s == consumer.StateError {
				cancel()
			}
		},
	})

	logger.Printf("Following %s stream at %s", *transport, *feedURL)
	c.Connect(ctx)

	<-ctx.Done()
	c.Disconnect()

	if err := c.LastError(); err != nil {
		logger.Printf("Stream ended: %v", err)
	}

	printSummary(c.Window())
}

// newSource builds a stream source for the chosen transport.
func newSource(transport, baseURL string) (consumer.Source, error) {
	base := strings.TrimRight(baseURL, "/")
	switch transport {
	case "sse":
		return consumer.NewSSESource(base + "/stream"), nil
	case "ws":
		// http -> ws, https -> wss
		wsBase := strings.Replace(base, "http", "ws", 1)
		return consumer.NewWSSource(wsBase + "/stream/ws"), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want sse or ws)", transport)
	}
}

// printPoint writes one live point to stdout.
func printPoint(p domain.MetricPoint, asJSON bool) {
	if asJSON {
		out, _ := json.Marshal(p)
		fmt.Println(string(out))
		return
	}
	fmt.Printf("[%s] revenue=%.2f users=%d engagement=%.2f%%\n",
		p.Timestamp.Format(time.RFC3339), p.Revenue, p.ActiveUsers, p.EngagementRate)
}

// printSummary prints totals over the retained live window.
func printSummary(points []domain.MetricPoint) {
	summary := stats.Summarize(points)
	fmt.Printf("\n=== Feed Summary ===\n")
	fmt.Printf("Points Observed:  %d\n", len(points))
	fmt.Printf("Total Revenue:    %.2f\n", summary.TotalRevenue)
	fmt.Printf("Active Users:     %d\n", summary.TotalUsers)
	fmt.Printf("Avg Engagement:   %.2f%%\n", summary.AvgEngagement)
	fmt.Printf("Revenue Change:   %+.2f%%\n", summary.RevenueChangePct)
}
