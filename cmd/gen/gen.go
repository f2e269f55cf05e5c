// Package gen holds the documentation generators for the tesp binary.
package gen

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for the tesp client",
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
	RootCmd.AddCommand(MarkdownCmd)
}

// ensureDir creates dir when it is missing.
func ensureDir(dir string) error {
	if _, err := os.Stat(dir); err != nil && os.IsNotExist(err) {
		fmt.Println("Directory", dir, "does not exist, creating...")
		return os.MkdirAll(dir, 0750)
	}

	return nil
}
