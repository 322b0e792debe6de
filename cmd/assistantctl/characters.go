package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	charactersCmd := &cobra.Command{Use: "characters", Short: "Character operations"}

	var personality, style, specialization string
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetBody(map[string]string{
					"name":           args[0],
					"personality":    personality,
					"speakingStyle":  style,
					"specialization": specialization,
				}).
				Post("/api/characters"))
		},
	}
	createCmd.Flags().StringVarP(&personality, "personality", "p", "", "Personality description")
	createCmd.Flags().StringVar(&style, "style", "", "Speaking style")
	createCmd.Flags().StringVar(&specialization, "specialization", "", "Specialization")
	charactersCmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().Get("/api/characters"))
		},
	}
	charactersCmd.AddCommand(listCmd)

	activateCmd := &cobra.Command{
		Use:   "activate CHARACTER_ID",
		Short: "Activate a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().Post("/api/characters/" + args[0] + "/activate"))
		},
	}
	charactersCmd.AddCommand(activateCmd)

	rootCmd.AddCommand(charactersCmd)

	var days int
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show response-time statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetQueryParam("days", strconv.Itoa(days)).
				Get("/api/stats/response-times"))
		},
	}
	statsCmd.Flags().IntVarP(&days, "days", "d", 7, "Aggregation window in days")
	rootCmd.AddCommand(statsCmd)

	tokensCmd := &cobra.Command{Use: "tokens", Short: "Token accounting"}
	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Show token usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetQueryParam("days", strconv.Itoa(days)).
				Get("/api/tokens/usage"))
		},
	}
	usageCmd.Flags().IntVarP(&days, "days", "d", 7, "Aggregation window in days")
	tokensCmd.AddCommand(usageCmd)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset token usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().Post("/api/tokens/reset"))
		},
	}
	tokensCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(tokensCmd)
}
