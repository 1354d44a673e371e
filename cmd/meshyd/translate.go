package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// translateCmd sends one text through a running meshyd instance
func translateCmd() *cobra.Command {
	var (
		source string
		target string
		model  string
		server string
	)

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate a text through a running server",
		Long: `Send a single text to a running meshyd instance and print the result.

Waits for a translation worker; without one the server echoes the text back
after its sync timeout, marked with the fallback model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				return fmt.Errorf("--target is required")
			}

			addr := server
			if addr == "" {
				addr = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
			}

			body, err := json.Marshal(map[string]string{
				"text":           args[0],
				"sourceLanguage": source,
				"targetLanguage": target,
				"modelType":      model,
			})
			if err != nil {
				return fmt.Errorf("encode request: %w", err)
			}

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Post(addr+"/api/v1/translate", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
			}

			var result struct {
				SourceLanguage   string  `json:"source_language"`
				TargetLanguage   string  `json:"target_language"`
				TranslatedText   string  `json:"translated_text"`
				TranslatorModel  string  `json:"translator_model"`
				ConfidenceScore  float64 `json:"confidence_score"`
				ProcessingTimeMs int64   `json:"processing_time_ms"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			fmt.Println(result.TranslatedText)
			fmt.Printf("  %s -> %s  model=%s  confidence=%.2f  %dms\n",
				result.SourceLanguage,
				result.TargetLanguage,
				result.TranslatorModel,
				result.ConfidenceScore,
				result.ProcessingTimeMs,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Source language (auto-detected when empty)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language code (required)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Worker model type (standard, premium)")
	cmd.Flags().StringVar(&server, "server", "", "Server base URL (defaults to configured host and port)")

	return cmd
}
