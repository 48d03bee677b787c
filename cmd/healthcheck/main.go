// Command healthcheck probes the local leaderboard server for container
// HEALTHCHECK directives. It exits 0 when GET /health answers 200 and 1
// otherwise. It has no dependencies beyond the binary itself, so it runs in
// distroless images.
//
// LEADERBOARD_PORT selects the port (default 8080).
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"leaderboard/internal/version"
)

const probeTimeout = 5 * time.Second

func main() {
	if err := probe(healthURL()); err != nil {
		os.Exit(1)
	}
}

func healthURL() string {
	port := os.Getenv("LEADERBOARD_PORT")
	if port == "" {
		port = "8080"
	}
	return "http://" + net.JoinHostPort("localhost", port) + "/health"
}

func probe(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.GetInfo().UserAgent("healthcheck"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "unhealthy: " + http.StatusText(e.code) }
