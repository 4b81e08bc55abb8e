package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// completeCandidateIDs lists stored candidate IDs with their title as the
// description.
func completeCandidateIDs(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if Candidates == nil || len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	opps, err := Candidates.ListOpportunities()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, o := range opps {
		if toComplete == "" || strings.HasPrefix(o.ID, toComplete) {
			desc := o.Title
			if desc == "" {
				desc = string(o.Category) + ": " + o.Repository.ID
			}
			ids = append(ids, o.ID+"\t"+desc)
		}
	}

	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeRiskCategories completes risk category flag values.
func completeRiskCategories(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"low\tLikely to be accepted",
		"medium\tMay need several review rounds",
		"high\tLikely to be rejected",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeCategories completes opportunity category flag values.
func completeCategories(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		out[i] = string(c)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	candidatesRemoveCmd.ValidArgsFunction = completeCandidateIDs
	_ = candidatesListCmd.RegisterFlagCompletionFunc("category", completeCategories)
	_ = scoreCmd.RegisterFlagCompletionFunc("risk", completeRiskCategories)
	_ = outcomesCmd.RegisterFlagCompletionFunc("risk", completeRiskCategories)
}
