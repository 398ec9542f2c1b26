// Command paystamp is the batch CLI: it runs page images through the same
// recognition, parsing, matching, and stamping stages as the daemon, without
// the review checkpoint. Applications that need review are reported and
// skipped.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "paystamp",
	Short: "Process subcontractor pay applications from the command line",
	Long: `paystamp recognizes AIA-style payment applications, resolves the
subcontractor against the commitment catalog, and stamps approvals.

Configuration comes from the environment (or a .env file): CATALOG_PATH,
APPROVER_NAME, AZURE_CV_ENDPOINT, and AZURE_CV_KEY at minimum.`,
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(catalogCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
