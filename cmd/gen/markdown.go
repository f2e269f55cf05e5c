package gen

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var markdownDir string

var MarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Generate markdown reference pages for every tesp command",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureDir(markdownDir); err != nil {
			return err
		}

		cmd.Root().DisableAutoGenTag = true

		fmt.Println("Generating tesp markdown in", markdownDir, "...")

		return doc.GenMarkdownTree(cmd.Root(), markdownDir)
	},
}

func init() {
	MarkdownCmd.Flags().StringVar(&markdownDir, "dir", "docs/", "the directory to write the markdown pages.")
}
