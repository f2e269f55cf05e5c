package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pacoapp/tesp/serveraddr"
)

var (
	// Issue a HEAD request against the URL
	checkURL bool

	checkTimeout time.Duration
)

var URLCmd = &cobra.Command{
	Use:   "url <host> [path]",
	Short: "Print the companion HTTP URL for a server address",
	Long: `Print the companion HTTP URL for a server address.

With --check the URL is requested over the connection kind the host calls for;
plain http is refused unless the host is a local development address.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := args[0]

		path := "/"
		if len(args) == 2 {
			path = args[1]
		}

		url := serveraddr.BuildURL(host, path)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", url, serveraddr.SelectConnectionKind(host))

		if !checkURL {
			return nil
		}

		status, err := checkCompanion(cmd, serveraddr.NewHTTPClient(host, checkTimeout), url)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	flags := URLCmd.Flags()

	flags.BoolVar(&checkURL, "check", false, "Request the URL and print the response status")
	flags.DurationVar(&checkTimeout, "check-timeout", 5*time.Second, "Timeout for --check")
}

func checkCompanion(cmd *cobra.Command, c *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.Do(req)
	if err != nil {
		return "", fmt.Errorf("Failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	return resp.Status, nil
}
