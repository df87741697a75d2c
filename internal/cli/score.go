package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/industria/internal/model"
	"github.com/ppiankov/industria/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	scoreFile    string
	scoreJSON    bool
	scoreExplain bool
	scoreHTML    bool
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score [text]",
	Short: "Score text against every configured industry",
	Long: `Score matches a piece of content against every enabled industry and
prints the industries it would be labeled with, best first.

The text comes from the argument, from --file, or from stdin.

Example:
  industria score "台积电宣布其3nm制程技术取得重大突破"
  industria score --file article.txt --explain
  industria score --file page.html --html
  cat article.txt | industria score --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVarP(&scoreFile, "file", "f", "", "read the text from a file")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print the full decision as JSON")
	scoreCmd.Flags().BoolVar(&scoreHTML, "html", false, "treat the input as HTML and score its visible text")
	scoreCmd.Flags().BoolVar(&scoreExplain, "explain", false, "print every industry score with its breakdown")
}

func runScore(cmd *cobra.Command, args []string) error {
	text, err := readScoreInput(cmd, args)
	if err != nil {
		return err
	}
	if scoreHTML {
		if text, err = pipeline.PlainText(model.ContentHTML, text); err != nil {
			return err
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, closer, err := a.newScoringPipeline(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	decision, err := p.Classify(ctx, text)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case scoreJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(decision)
	case scoreExplain:
		return printExplain(out, decision)
	default:
		return printLabels(out, decision)
	}
}

func readScoreInput(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1 && scoreFile != "":
		return "", fmt.Errorf("pass either text or --file, not both")
	case len(args) == 1:
		return args[0], nil
	case scoreFile != "":
		data, err := os.ReadFile(scoreFile)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
}

func printLabels(w io.Writer, d *model.Decision) error {
	if len(d.Labels) == 0 {
		_, err := fmt.Fprintln(w, "No industry labels")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDUSTRY\tNAME\tSCORE\tCONFIDENCE")
	for _, l := range d.Labels {
		confidence := "high"
		if l.LowConfidence {
			confidence = "low"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\n", l.IndustryID, l.IndustryName, l.Score, confidence)
	}
	return tw.Flush()
}

func printExplain(w io.Writer, d *model.Decision) error {
	var err error
	printf := func(format string, a ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, a...)
	}

	printf("Rules version: %s\n", d.SnapshotVersion)
	printf("Labels:        %s\n\n", strings.Join(d.LabelIDs(), ", "))

	for _, r := range d.Results {
		printf("═══════════════════════════════════════════════════════════\n")
		printf("  %s (%s)  score %.3f  [%s]\n", r.IndustryID, r.IndustryName, r.Score, r.Outcome)
		printf("═══════════════════════════════════════════════════════════\n")
		printf("  Base:        %.3f\n", r.BaseScore)
		printf("  Quality:     %.3f\n", r.MatchQuality)
		printf("  Frequency:   %.3f\n", r.FrequencyScore)
		printf("  High value:  %.3f\n", r.HighValueBoost)
		printf("  Context:     x%.3f\n", r.ContextBoost)
		if len(r.ExclusionTerms) > 0 {
			printf("  Excluded by: %s\n", strings.Join(r.ExclusionTerms, ", "))
		}

		printf("\n  %-24s %6s %8s %6s %12s\n", "LAYER", "WEIGHT", "DISTINCT", "FREQ", "CONTRIBUTION")
		for _, l := range r.Layers {
			printf("  %-24s %6.2f %8d %6d %12.3f\n", l.Layer, l.Weight, l.Distinct, l.Frequency, l.Contribution)
		}

		if len(r.Signals) > 0 {
			printf("\n  Signals:\n")
			for _, s := range r.Signals {
				printf("    %-16s %.3f  = %s%s\n", s.Name, s.Value, s.Formula, formatInputs(s.Inputs))
			}
		}
		printf("\n")
	}
	return err
}

func formatInputs(inputs map[string]float64) string {
	if len(inputs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, inputs[k])
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}
