package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	memoriesCmd := &cobra.Command{Use: "memories", Short: "Memory catalog operations"}

	var sortBy string
	var ascending bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetQueryParam("sortBy", sortBy).
				SetQueryParam("descending", strconv.FormatBool(!ascending)).
				Get("/api/memories"))
		},
	}
	listCmd.Flags().StringVar(&sortBy, "sort", "createdAt", "Sort field")
	listCmd.Flags().BoolVar(&ascending, "ascending", false, "Sort ascending instead of descending")
	memoriesCmd.AddCommand(listCmd)

	var keyword, category, importance, characterID string
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetQueryParams(map[string]string{
					"keyword":     keyword,
					"category":    category,
					"importance":  importance,
					"characterId": characterID,
				}).
				Get("/api/memories/search"))
		},
	}
	searchCmd.Flags().StringVarP(&keyword, "keyword", "k", "", "Keyword filter")
	searchCmd.Flags().StringVarP(&category, "category", "c", "", "Category filter")
	searchCmd.Flags().StringVarP(&importance, "importance", "i", "", "Importance filter")
	searchCmd.Flags().StringVar(&characterID, "character", "", "Character ID filter")
	memoriesCmd.AddCommand(searchCmd)

	getCmd := &cobra.Command{
		Use:   "get MEMORY_ID",
		Short: "Get a memory by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().Get("/api/memories/" + args[0]))
		},
	}
	memoriesCmd.AddCommand(getCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete MEMORY_ID",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().Delete("/api/memories/" + args[0]))
		},
	}
	memoriesCmd.AddCommand(deleteCmd)

	var title, content, saveCategory, saveImportance, tags string
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Save the session's conversation as a memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"title":      title,
				"content":    content,
				"category":   saveCategory,
				"importance": saveImportance,
			}
			if tags != "" {
				payload["tags"] = strings.Split(tags, ",")
			}
			return do(newHTTP().R().
				SetBody(payload).
				Post("/api/sessions/" + sessionFlag + "/save-memory"))
		},
	}
	saveCmd.Flags().StringVarP(&title, "title", "t", "", "Memory title (defaults to the conversation summary)")
	saveCmd.Flags().StringVar(&content, "content", "", "Memory content")
	saveCmd.Flags().StringVarP(&saveCategory, "category", "c", "chat", "Category")
	saveCmd.Flags().StringVarP(&saveImportance, "importance", "i", "medium", "Importance")
	saveCmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	memoriesCmd.AddCommand(saveCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume MEMORY_ID",
		Short: "Resume the session from a saved memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(newHTTP().R().
				SetBody(map[string]string{"sessionId": sessionFlag}).
				Post("/api/memories/" + args[0] + "/resume"))
		},
	}
	memoriesCmd.AddCommand(resumeCmd)

	rootCmd.AddCommand(memoriesCmd)
}
