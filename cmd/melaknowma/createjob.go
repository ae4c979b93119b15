package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"melaknowma/internal/config"
	"melaknowma/internal/crowd"
	"melaknowma/internal/jobs"
	"melaknowma/internal/types"
)

var (
	createJobCategory     string
	createJobTitle        string
	createJobInstructions string
)

var createJobCmd = &cobra.Command{
	Use:   "create-job",
	Short: "Create a crowdsourcing job and map it to a category",
	Long: `Create or update a job on the crowdsourcing provider and store the
returned job id as the given category's mapping, so results for that job
resolve to the category:

  melaknowma create-job --category border \
    --title "Border check" \
    --instructions "Does the mole have an irregular border?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		category := types.Category(createJobCategory)
		if !category.IsValid() {
			return fmt.Errorf("unknown category %q (known: %v)", createJobCategory, types.Categories)
		}
		if createJobTitle == "" {
			return fmt.Errorf("--title is required")
		}

		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

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

		client := crowd.New(crowd.Options{
			BaseURL:           cfg.Crowd.BaseURL,
			APIKey:            cfg.Crowd.APIKey,
			RequestsPerSecond: cfg.Crowd.RequestsPerSecond,
		}, logger.Named("crowd"))

		jobID, err := client.UpsertJob(ctx, createJobTitle, createJobInstructions)
		if err != nil {
			return err
		}
		if err := jobs.New(kv).Configure(ctx, map[types.Category]string{category: jobID}); err != nil {
			return err
		}
		fmt.Printf("job %s created and mapped to %s\n", jobID, category)
		return nil
	},
}

func init() {
	createJobCmd.Flags().StringVar(&createJobCategory, "category", "", "category to map the job to")
	createJobCmd.Flags().StringVar(&createJobTitle, "title", "", "job title shown to workers")
	createJobCmd.Flags().StringVar(&createJobInstructions, "instructions", "", "job instructions shown to workers")
	rootCmd.AddCommand(createJobCmd)
}
