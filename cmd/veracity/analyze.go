package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"veracity/internal/deception"
	"veracity/internal/extract"
	"veracity/internal/pipeline"
)

type fileOutcome struct {
	Path      string                   `json:"path"`
	MediaType string                   `json:"mediaType"`
	Truncated bool                     `json:"truncated,omitempty"`
	Result    deception.AnalysisResult `json:"result"`
}

func newAnalyzeCmd() *cobra.Command {
	var (
		locale    string
		mediaType string
		asJSON    bool
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Score files or stdin for deception risk locally",
		Long: "Analyze runs the local engine against the given files, or against\n" +
			"stdin when no file is named. No remote classifier is involved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, locale, mediaType, asJSON, workers)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&locale, "locale", "l", "en", "report locale (en, ko)")
	flags.StringVar(&mediaType, "media-type", "", "declared media type, overrides detection")
	flags.BoolVar(&asJSON, "json", false, "emit JSON instead of text")
	flags.IntVar(&workers, "workers", 0, "parallel workers for multiple files (0 = CPU count)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, paths []string, locale, mediaType string, asJSON bool, workers int) error {
	loc := deception.NormalizeLocale(locale)
	extractor := extract.New(0)

	if len(paths) == 0 {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		ex, err := extractor.FromBytes(raw, "", mediaType)
		if err != nil {
			return err
		}
		out := fileOutcome{
			Path:      "-",
			MediaType: ex.MediaType,
			Truncated: ex.Truncated,
			Result:    deception.Analyze(ex.Text, loc),
		}
		return printOutcomes(cmd.OutOrStdout(), []fileOutcome{out}, asJSON)
	}

	var mu sync.Mutex
	outcomes := make(map[string]fileOutcome, len(paths))

	errs := pipeline.Run(paths, workers, func(path string) error {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		ex, err := extractor.FromBytes(raw, path, mediaType)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out := fileOutcome{
			Path:      path,
			MediaType: ex.MediaType,
			Truncated: ex.Truncated,
			Result:    deception.Analyze(ex.Text, loc),
		}
		mu.Lock()
		outcomes[path] = out
		mu.Unlock()
		return nil
	})

	ordered := make([]fileOutcome, 0, len(outcomes))
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if out, ok := outcomes[path]; ok && !seen[path] {
			ordered = append(ordered, out)
			seen[path] = true
		}
	}

	if err := printOutcomes(cmd.OutOrStdout(), ordered, asJSON); err != nil {
		return err
	}

	if len(errs) > 0 {
		sorted := make([]string, 0, len(errs))
		for _, err := range errs {
			sorted = append(sorted, err.Error())
		}
		sort.Strings(sorted)
		return fmt.Errorf("%d of %d inputs failed:\n  %s",
			len(errs), len(paths), strings.Join(sorted, "\n  "))
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []fileOutcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}
	for i, out := range outcomes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		renderOutcome(w, out)
	}
	return nil
}

func renderOutcome(w io.Writer, out fileOutcome) {
	fmt.Fprintf(w, "%s (%s)\n", out.Path, out.MediaType)
	if out.Truncated {
		fmt.Fprintln(w, "  note: input truncated to the extraction budget")
	}
	fmt.Fprintf(w, "  lie probability %d%%, confidence %d%%\n",
		out.Result.LieProbability, out.Result.ConfidenceScore)
	fmt.Fprintf(w, "  %s\n", out.Result.Summary)

	for _, cue := range out.Result.Cues {
		fmt.Fprintf(w, "  [%s] %s: %s\n", cue.Risk, cue.Label, cue.Value)
	}
	for _, m := range out.Result.Metrics {
		fmt.Fprintf(w, "  %s: %s\n", m.Label, m.Value)
	}
	for i, ev := range out.Result.Evidence {
		fmt.Fprintf(w, "  %d. %q\n     %s\n", i+1, ev.Quote, ev.Rationale)
	}
}
