package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"melaknowma/internal/config"
	"melaknowma/internal/record"
	"melaknowma/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <record-id>",
	Short: "Show a record's scores and diagnosis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx := context.Background()
		kv, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer kv.Close()

		rec, err := record.New(kv).Get(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no such record: %s", args[0])
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Record "+rec.ID+" ==="))
		if rec.DataRef != "" {
			fmt.Printf("  image: %s\n", rec.DataRef)
		} else {
			fmt.Printf("  image: %s\n", gray("not attached"))
		}

		fmt.Printf("\n%s\n", yellow("Scores:"))
		for _, category := range types.Categories {
			if score, ok := rec.Scores[category]; ok {
				fmt.Printf("  %-10s %g\n", category, score)
			} else {
				fmt.Printf("  %-10s %s\n", category, gray("awaiting judgments"))
			}
		}

		fmt.Printf("\n%s ", yellow("Diagnosis:"))
		switch rec.Diagnosis {
		case types.DiagnosisFlagForReview:
			fmt.Println(red(string(rec.Diagnosis)))
		case types.DiagnosisLikelyBenign:
			fmt.Println(green(string(rec.Diagnosis)))
		default:
			fmt.Println(gray(string(rec.Diagnosis)))
		}
		if rec.GroundTruth != "" {
			fmt.Printf("%s %s\n", yellow("Ground truth:"), rec.GroundTruth)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
