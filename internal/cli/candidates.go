package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/internal/storage"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

var (
	candidatesCategories []string
	candidatesLanguage   string
	candidatesRepo       string
	candidatesJSON       bool
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Manage candidate contribution opportunities",
	Long: `Manage the candidate opportunities that scoring and planning draw from.

Candidates are produced by external discovery and analysis tooling and
imported from YAML or JSON files.`,
}

var candidatesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import opportunities from a YAML or JSON file",
	Long: `Import opportunities from a file containing an "opportunities" list.

Existing candidates with the same ID are replaced. Entries without an ID
are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Candidates == nil {
			return fmt.Errorf("candidate store not initialized")
		}
		res, err := Candidates.Import(args[0])
		if err != nil {
			return err
		}
		if err := Candidates.Save(); err != nil {
			return fmt.Errorf("saving candidates: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d added, %d updated, %d skipped\n",
			args[0], res.Added, res.Updated, res.Skipped)
		return nil
	},
}

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored candidates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Candidates == nil {
			return fmt.Errorf("candidate store not initialized")
		}
		filter := storage.CandidateFilter{
			Language:   candidatesLanguage,
			Repository: candidatesRepo,
		}
		for _, c := range candidatesCategories {
			cat := models.Category(strings.TrimSpace(c))
			if !cat.Valid() {
				return fmt.Errorf("invalid category %q", c)
			}
			filter.Categories = append(filter.Categories, cat)
		}

		opps, err := Candidates.FilterCandidates(filter)
		if err != nil {
			return fmt.Errorf("listing candidates: %w", err)
		}

		out := cmd.OutOrStdout()
		if candidatesJSON {
			return writeJSON(out, opps)
		}
		if len(opps) == 0 {
			fmt.Fprintln(out, "No candidates found.")
			return nil
		}
		fmt.Fprintf(out, "%-24s %-18s %-28s %-10s %6s %6s\n", "ID", "CATEGORY", "REPOSITORY", "LANGUAGE", "IMPACT", "DIFF")
		for _, o := range opps {
			fmt.Fprintf(out, "%-24s %-18s %-28s %-10s %6.2f %6.2f\n",
				o.ID, o.Category, o.Repository.ID, o.Repository.Language, o.Impact, o.Difficulty)
		}
		fmt.Fprintf(out, "\n%d candidate(s)\n", len(opps))
		return nil
	},
}

var candidatesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Candidates == nil {
			return fmt.Errorf("candidate store not initialized")
		}
		if err := Candidates.RemoveCandidate(args[0]); err != nil {
			return fmt.Errorf("removing candidate: %w", err)
		}
		if err := Candidates.Save(); err != nil {
			return fmt.Errorf("saving candidates: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func init() {
	candidatesListCmd.Flags().StringSliceVar(&candidatesCategories, "category", nil, "Only show these categories")
	candidatesListCmd.Flags().StringVar(&candidatesLanguage, "language", "", "Only show repositories in this language")
	candidatesListCmd.Flags().StringVar(&candidatesRepo, "repo", "", "Only show this repository")
	candidatesListCmd.Flags().BoolVar(&candidatesJSON, "json", false, "Output as JSON")

	candidatesCmd.AddCommand(candidatesImportCmd)
	candidatesCmd.AddCommand(candidatesListCmd)
	candidatesCmd.AddCommand(candidatesRemoveCmd)
	rootCmd.AddCommand(candidatesCmd)
}
