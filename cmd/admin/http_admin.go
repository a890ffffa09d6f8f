package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show runtime, cache and index counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.OutOrStdout(), endpoint(baseURL, "/v1/stats"))
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")
	return cmd
}

func newDirectivesCmd() *cobra.Command {
	var (
		baseURL string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "directives <agent-id>",
		Short: "Show an agent's most recent directives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := endpoint(baseURL, "/v1/agents/"+url.PathEscape(args[0])+"/directives")
			if limit > 0 {
				u += fmt.Sprintf("?limit=%d", limit)
			}
			return getJSON(cmd.OutOrStdout(), u)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")
	cmd.Flags().IntVar(&limit, "limit", 0, "max directives (server default when 0)")
	return cmd
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
}

func getJSON(out io.Writer, u string) error {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, b, "", "  ") == nil {
		b = pretty.Bytes()
	}
	_, err = fmt.Fprintln(out, strings.TrimSpace(string(b)))
	return err
}
