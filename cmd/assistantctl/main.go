// assistantctl is a CLI client for the assistant backend REST API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	apiFlag     string
	sessionFlag string
	rootCmd     = &cobra.Command{
		Use:   "assistantctl",
		Short: "CLI client for the assistant backend REST API",
	}
)

func newHTTP() *resty.Client {
	return resty.New().
		SetBaseURL(apiFlag).
		SetHeader("Content-Type", "application/json").
		SetTimeout(3 * time.Minute)
}

// do checks the response and prints the body on success.
func do(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	_, _ = fmt.Fprintln(os.Stdout, resp.String())
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8000", "Assistant service base URL")
	rootCmd.PersistentFlags().StringVarP(&sessionFlag, "session", "s", "default", "Session ID")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
