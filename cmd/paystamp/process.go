package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/catalog"
	"github.com/blue-scarf/paystamp/internal/common"
	"github.com/blue-scarf/paystamp/internal/extract/azure"
	"github.com/blue-scarf/paystamp/internal/match"
	"github.com/blue-scarf/paystamp/internal/money"
	"github.com/blue-scarf/paystamp/internal/parser"
	"github.com/blue-scarf/paystamp/internal/pipeline"
	"github.com/blue-scarf/paystamp/internal/stamp"
)

var (
	flagOutDir string
	flagStamp  bool
)

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Recognize, parse, and match pay applications",
	Long: `Runs each page image through recognition, field parsing, and vendor
resolution, printing one summary line per file. With --stamp, applications
that resolved cleanly and have all required fields are stamped and written
to the output directory; anything needing review is skipped with a reason.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&flagOutDir, "out", "o", "stamped", "output directory for stamped pages")
	processCmd.Flags().BoolVar(&flagStamp, "stamp", false, "stamp applications that pass verification checks")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	cat := catalog.NewStore(cfg.Catalog.Path, nil)
	if err := cat.Load(ctx); err != nil {
		return err
	}

	store, err := pipeline.OpenStore(":memory:", nil)
	if err != nil {
		return err
	}
	defer store.Close()

	composer, err := stamp.NewComposer(nil)
	if err != nil {
		return err
	}

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Store:     store,
		Extractor: azure.NewClient(cfg.OCR.AzureEndpoint, cfg.OCR.AzureKey, cfg.OCR.Enhance, nil),
		Parser:    parser.New(cfg.Stamp.OwnerName, nil),
		Matcher: match.New(match.Thresholds{
			Accept:         cfg.Match.AcceptThreshold,
			Floor:          cfg.Match.FloorThreshold,
			AmbiguityDelta: cfg.Match.AmbiguityDelta,
		}, nil),
		Catalog:  cat,
		Composer: composer,
		Approver: cfg.Stamp.Approver,
	})

	if flagStamp {
		if err := os.MkdirAll(flagOutDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	failures := 0
	for _, path := range args {
		if err := processFile(cmd, orch, path); err != nil {
			failures++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", filepath.Base(path), err)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(args))
	}
	return nil
}

func processFile(cmd *cobra.Command, orch *pipeline.Orchestrator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := orch.Create(ctx, filepath.Base(path), [][]byte{data})
	if err != nil {
		return err
	}
	if s.State == constants.StateError {
		return fmt.Errorf("processing failed: %s", s.LastError)
	}

	summary := summarize(s)
	fmt.Fprintln(cmd.OutOrStdout(), summary)

	if !flagStamp {
		return nil
	}
	if err := s.ReadyToStamp(); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  skipped (needs review): %v\n", err)
		return nil
	}

	if _, err := orch.Stamp(ctx, s.ID); err != nil {
		return fmt.Errorf("stamp: %w", err)
	}
	_, pages, err := orch.Deliver(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, page := range pages {
		out := filepath.Join(flagOutDir, fmt.Sprintf("%s_stamped_%d.png", base, i))
		if len(pages) == 1 {
			out = filepath.Join(flagOutDir, base+"_stamped.png")
		}
		if err := os.WriteFile(out, page, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  wrote %s\n", out)
	}
	return nil
}

func summarize(s *pipeline.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: vendor=%q", s.DocumentName, s.Fields.VendorName)
	if s.Match != nil {
		fmt.Fprintf(&b, " match=%s", s.Match.Outcome)
	}
	if s.SelectedCommitmentID != "" {
		fmt.Fprintf(&b, " commitment=%s cost_code=%s", s.SelectedCommitmentID, s.SelectedCostCode)
	}
	if !s.Fields.IsMissing(constants.FieldAmountDue) {
		fmt.Fprintf(&b, " due=%s", money.FormatUSD(s.Fields.AmountDueCents))
	}
	if missing := s.Fields.MissingRequired(); len(missing) > 0 {
		fmt.Fprintf(&b, " missing=%v", missing)
	}
	return b.String()
}
