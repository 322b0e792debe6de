package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	var characterID string
	chatCmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Send a chat message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetBody(map[string]interface{}{
					"sessionId":   sessionFlag,
					"characterId": characterID,
					"message":     strings.Join(args, " "),
				}).
				Post("/api/chat"))
		},
	}
	chatCmd.Flags().StringVarP(&characterID, "character", "c", "", "Character ID override for this message")
	rootCmd.AddCommand(chatCmd)

	var imageFile, mimeType string
	imageCmd := &cobra.Command{
		Use:   "chat-image MESSAGE...",
		Short: "Send a chat message with an attached image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if imageFile == "" {
				return fmt.Errorf("--image required")
			}
			raw, err := os.ReadFile(imageFile)
			if err != nil {
				return err
			}
			return do(newHTTP().R().
				SetBody(map[string]interface{}{
					"sessionId": sessionFlag,
					"message":   strings.Join(args, " "),
					"imageData": base64.StdEncoding.EncodeToString(raw),
					"mimeType":  mimeType,
				}).
				Post("/api/chat/image"))
		},
	}
	imageCmd.Flags().StringVarP(&imageFile, "image", "i", "", "Path to the image file (required)")
	imageCmd.Flags().StringVarP(&mimeType, "mime", "m", "image/jpeg", "Image MIME type")
	_ = imageCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(imageCmd)

	var lane string
	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel pending generation requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetBody(map[string]string{"lane": lane}).
				Post("/api/chat/cancel"))
		},
	}
	cancelCmd.Flags().StringVarP(&lane, "lane", "l", "", "Lane to cancel (text, image, or empty for both)")
	rootCmd.AddCommand(cancelCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the session's conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().Get("/api/sessions/" + sessionFlag + "/history"))
		},
	}
	rootCmd.AddCommand(historyCmd)

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().Get("/api/sessions"))
		},
	}
	rootCmd.AddCommand(sessionsCmd)
}
