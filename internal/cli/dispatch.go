package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/config"
)

func newDispatchCmd() *cobra.Command {
	var (
		gatewayURL    string
		typingSeconds float64
		accessHash    string
	)

	cmd := &cobra.Command{
		Use:   "dispatch <recipient> <text>",
		Short: "Send a Telegram message through the running gateway",
		Long: "Sends a text message to a Telegram recipient via the gateway's " +
			"dispatch endpoint. The recipient is a username or id:<numeric id>.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.Dispatch.Token == "" {
				return fmt.Errorf("dispatch token is not configured")
			}

			if gatewayURL == "" {
				gatewayURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Gateway.Port)
			}

			body := map[string]any{
				"recipient_id":   args[0],
				"text":           args[1],
				"typing_seconds": typingSeconds,
			}
			if accessHash != "" {
				body["access_hash"] = accessHash
			}

			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request: %w", err)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				gatewayURL+"/dispatch", bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+cfg.Dispatch.Token)

			client := &http.Client{Timeout: 90 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			respBody, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("dispatch failed (%d): %s", resp.StatusCode, string(respBody))
			}

			fmt.Printf("Sent to %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "gateway base URL (default http://127.0.0.1:<port>)")
	cmd.Flags().Float64Var(&typingSeconds, "typing", 2, "seconds to show the typing indicator before sending")
	cmd.Flags().StringVar(&accessHash, "access-hash", "", "access hash for recipients outside the dialog list")

	return cmd
}
