package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/opsmesh/orchestrator"
)

func newChatCommand(_ *globalOptions) *cobra.Command {
	var (
		server    string
		sessionID string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat <prompt>...",
		Short: "Send one prompt to a running server",
		Example: `  opsmesh chat --session demo "How many pumps are in stock?"
  opsmesh chat --session demo yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			resp, err := postTurn(cmd, client, server, orchestrator.TurnRequest{
				SessionID: sessionID,
				Prompt:    strings.Join(args, " "),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Text)
			if resp.PendingApproval {
				fmt.Fprintf(out, "\n(pending approval: reply with `opsmesh chat --session %s yes` or `no`)\n", resp.SessionID)
			}
			if sessionID == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", resp.SessionID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8000", "Base URL of the opsmesh server")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (a new one is created when empty)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	return cmd
}

func postTurn(cmd *cobra.Command, client *http.Client, server string, turn orchestrator.TurnRequest) (orchestrator.TurnResponse, error) {
	body, err := json.Marshal(turn)
	if err != nil {
		return orchestrator.TurnResponse{}, err
	}

	url := strings.TrimRight(server, "/") + "/orchestrator/chat"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return orchestrator.TurnResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return orchestrator.TurnResponse{}, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return orchestrator.TurnResponse{}, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out orchestrator.TurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return orchestrator.TurnResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
