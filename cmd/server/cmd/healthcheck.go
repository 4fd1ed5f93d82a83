package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckTimeout int
	healthcheckURL     string
	allowDegraded      bool
)

func newHealthcheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server is healthy, non-zero otherwise. A server
whose admin portal is unreachable reports "degraded"; pass --allow-degraded
to treat that as healthy.

Exit codes:
  0 - Server is healthy
  1 - Server is unhealthy or unreachable
  2 - Invalid response from server`,
		RunE: runHealthcheck,
	}

	cmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	cmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	cmd.Flags().BoolVar(&allowDegraded, "allow-degraded", false, "exit 0 when the server reports degraded")
	return cmd
}

// HealthResponse matches the /health body.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// errInvalidResponse marks bodies that are not a health report.
type errInvalidResponse struct{ err error }

func (e errInvalidResponse) Error() string { return "invalid health response: " + e.err.Error() }

// performHealthCheck fetches url and reports whether the server counts as
// healthy. A non-200 status is unhealthy, not an error.
func performHealthCheck(ctx context.Context, url string, degradedOK bool) (HealthResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return HealthResponse{}, false, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		if resp.StatusCode != http.StatusOK {
			return HealthResponse{Status: "unhealthy"}, false, nil
		}
		return HealthResponse{}, false, errInvalidResponse{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return health, false, nil
	}

	switch health.Status {
	case "healthy":
		return health, true, nil
	case "degraded":
		return health, degradedOK, nil
	default:
		return health, false, nil
	}
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3001"
		}
		url = fmt.Sprintf("http://localhost:%s/health", port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	health, healthy, err := performHealthCheck(ctx, url, allowDegraded)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		var invalid errInvalidResponse
		if errors.As(err, &invalid) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	if !healthy {
		fmt.Fprintf(os.Stderr, "Server status: %s\n", health.Status)
		for name, check := range health.Checks {
			if check.Status != "pass" {
				fmt.Fprintf(os.Stderr, "  %s: %s %s\n", name, check.Status, check.Message)
			}
		}
		os.Exit(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "healthy")
	return nil
}
