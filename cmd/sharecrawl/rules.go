package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sharecrawl/pkg/rule"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

var outputFormat string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect advanced sync rules",
	Long:  "Commands for validating rule files and listing the built-in rule presets",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate an advanced rules file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesValidate,
}

var rulesPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List built-in rule presets",
	Args:  cobra.NoArgs,
	RunE:  runRulesPresets,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <preset>",
	Short: "Show the patterns of a built-in preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesShow,
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd, rulesPresetsCmd, rulesShowCmd)
	rulesCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	res, err := rule.NewLoader().LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	return outputRules(cmd, res.Rules)
}

func runRulesPresets(cmd *cobra.Command, args []string) error {
	loader := rule.NewLoader()
	names, err := loader.Presets()
	if err != nil {
		return fmt.Errorf("listing presets: %w", err)
	}

	counts := make(map[string]int, len(names))
	for _, name := range names {
		res, err := loader.Preset(name)
		if err != nil {
			return fmt.Errorf("loading preset %s: %w", name, err)
		}
		counts[name] = len(res.Rules)
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(counts)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintf(w, "Preset\tPatterns\n")
		fmt.Fprintf(w, "------\t--------\n")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	res, err := rule.NewLoader().Preset(args[0])
	if err != nil {
		return err
	}
	return outputRules(cmd, res.Rules)
}

func outputRules(cmd *cobra.Command, rules []types.Rule) error {
	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if rules == nil {
			rules = []types.Rule{}
		}
		return encoder.Encode(rules)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintf(w, "#\tPattern\n")
		fmt.Fprintf(w, "-\t-------\n")
		for i, r := range rules {
			fmt.Fprintf(w, "%d\t%s\n", i+1, r.Pattern)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}
