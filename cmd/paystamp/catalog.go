package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blue-scarf/paystamp/internal/catalog"
	"github.com/blue-scarf/paystamp/internal/match"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the commitment catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Load a catalog file and report its contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogValidate,
}

var catalogMatchCmd = &cobra.Command{
	Use:   "match [file] [vendor name]",
	Short: "Resolve a vendor name against a catalog file",
	Args:  cobra.ExactArgs(2),
	RunE:  runCatalogMatch,
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogMatchCmd)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	records, err := catalog.LoadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", args[0], len(records))
	for _, r := range records {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %-40s %s\n", r.CommitmentID, r.Vendor, r.CostCode)
	}
	return nil
}

func runCatalogMatch(cmd *cobra.Command, args []string) error {
	records, err := catalog.LoadFile(args[0])
	if err != nil {
		return err
	}
	snap := catalog.NewSnapshot(records)
	res := match.New(match.Thresholds{}, nil).Resolve(args[1], snap)

	fmt.Fprintf(cmd.OutOrStdout(), "query=%q outcome=%s\n", res.Query, res.Outcome)
	for _, c := range res.Alternates {
		fmt.Fprintf(cmd.OutOrStdout(), "  %.3f  %-16s %s\n", c.Score, c.Record.CommitmentID, c.Record.Vendor)
	}
	return nil
}
