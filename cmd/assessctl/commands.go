package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appassess "github.com/bryanwahyu/assessment-hub/internal/application/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/catalog"
	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/infra/ai/prompt"
	"github.com/bryanwahyu/assessment-hub/internal/scoring"
)

func newRootCmd() *cobra.Command {
	var catalogDir string

	root := &cobra.Command{
		Use:           "assessctl",
		Short:         "Inspect assessment tools, scores and prompts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&catalogDir, "catalog", "", "directory of tool YAML files (default: embedded catalog)")

	load := func() (*catalog.Registry, error) {
		if catalogDir != "" {
			return catalog.LoadDir(catalogDir)
		}
		return catalog.Default()
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "tools",
			Short: "List the declared tools",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				reg, err := load()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SLUG\tROUTE\tENDPOINT\tQUESTIONS\tSCORED")
				for _, t := range reg.List() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", t.Slug, t.Route, t.Endpoint.Kind, len(t.Questions), t.Scored())
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "validate [dir]",
			Short: "Validate tool declarations (embedded catalog when no dir is given)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var (
					reg *catalog.Registry
					err error
				)
				if len(args) == 1 {
					reg, err = catalog.LoadDir(args[0])
				} else {
					reg, err = load()
				}
				if err != nil {
					return fmt.Errorf("invalid catalog: %w", err)
				}
				for _, t := range reg.List() {
					fmt.Fprintf(cmd.OutOrStdout(), "ok  %s (%d questions)\n", t.Slug, len(t.Questions))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "score <tool> <answers.json>",
			Short: "Compute the local risk score for an answers file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := load()
				if err != nil {
					return err
				}
				t, answers, _, err := readAnswers(reg, args[0], args[1])
				if err != nil {
					return err
				}
				score, ok := scoring.Score(t, answers)
				if !ok {
					return fmt.Errorf("tool %s has no local scorer", t.Slug)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(score)
			},
		},
		&cobra.Command{
			Use:   "prompt <tool> <answers.json>",
			Short: "Print the chat prompt that would be sent for an answers file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := load()
				if err != nil {
					return err
				}
				t, answers, profile, err := readAnswers(reg, args[0], args[1])
				if err != nil {
					return err
				}
				if t.Endpoint.Kind != assessment.EndpointChat {
					return fmt.Errorf("tool %s does not use a chat prompt", t.Slug)
				}
				var score *assessment.RiskScore
				if rs, ok := scoring.Score(t, answers); ok {
					score = &rs
				}
				p := prompt.Build(t, profile, answers, score)
				fmt.Fprintf(cmd.OutOrStdout(), "--- system ---\n%s\n--- user ---\n%s\n", p.System, p.User)
				return nil
			},
		},
	)
	return root
}

// readAnswers reads {"profile": {...}, "answers": {"1": ...}} and applies it
// to the tool. Missing required answers are allowed here.
func readAnswers(reg *catalog.Registry, slug, path string) (*assessment.Tool, assessment.AnswerSet, assessment.UserProfile, error) {
	t, err := reg.Get(slug)
	if err != nil {
		return nil, nil, assessment.UserProfile{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, assessment.UserProfile{}, err
	}
	var in appassess.AssessInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, nil, assessment.UserProfile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	c := assessment.NewCollector(t, nil)
	if err := c.SetAnswers(in.Answers); err != nil {
		return nil, nil, assessment.UserProfile{}, err
	}
	return t, c.AnswerSet(), in.Profile, nil
}
