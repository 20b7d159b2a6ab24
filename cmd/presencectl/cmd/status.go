package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// fetchJSON GETs path with query params and pretty-prints the JSON response.
func fetchJSON(path string, params url.Values) error {
	endpoint := serverURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := httpClient.Get(endpoint)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s: %s", endpoint, resp.Status, body)
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status snapshot: active connections, distinct identities, unique counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchJSON("/status/active-clients", nil)
	},
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the instant active-connection count",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchJSON("/api/active-clients", nil)
	},
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Show per-identity live-connection counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchJSON("/status/clientid-counts", nil)
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show per-day unique-visitor and visit counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		params := url.Values{}
		if limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", limit))
		}
		return fetchJSON("/status/daily-stats", params)
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show average and total session durations",
	RunE: func(cmd *cobra.Command, args []string) error {
		period, _ := cmd.Flags().GetString("period")
		clientID, _ := cmd.Flags().GetString("client-id")
		params := url.Values{}
		if period != "" {
			params.Set("period", period)
		}
		if clientID != "" {
			params.Set("clientId", clientID)
		}
		return fetchJSON("/status/usage-average", params)
	},
}

func init() {
	dailyCmd.Flags().Int("limit", 30, "maximum number of days to return")
	usageCmd.Flags().String("period", "all", "aggregation period: all or day")
	usageCmd.Flags().String("client-id", "", "restrict to a single client identity")

	rootCmd.AddCommand(statusCmd, activeCmd, countsCmd, dailyCmd, usageCmd)
}
