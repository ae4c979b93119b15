package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"melaknowma/internal/config"
	"melaknowma/internal/jobs"
	"melaknowma/internal/types"
)

var configureMappings []string

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Map categories to external crowdsourcing job ids",
	Long: `Overwrite the category -> external job id mapping in the shared store.

Each --job flag is category=jobid, e.g.:

  melaknowma configure --job border=5001 --job symmetry=5002 --job color=5003

Categories not mentioned keep their current job ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(configureMappings) == 0 {
			return fmt.Errorf("at least one --job category=jobid is required")
		}
		mapping := make(map[types.Category]string, len(configureMappings))
		for _, pair := range configureMappings {
			category, jobID, ok := strings.Cut(pair, "=")
			if !ok || jobID == "" {
				return fmt.Errorf("malformed --job %q (want category=jobid)", pair)
			}
			c := types.Category(category)
			if !c.IsValid() {
				return fmt.Errorf("unknown category %q (known: %v)", category, types.Categories)
			}
			mapping[c] = jobID
		}

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

		if err := jobs.New(kv).Configure(ctx, mapping); err != nil {
			return err
		}
		fmt.Printf("configured %d categor(ies)\n", len(mapping))
		return nil
	},
}

func init() {
	configureCmd.Flags().StringArrayVar(&configureMappings, "job", nil, "category=jobid mapping (repeatable)")
	rootCmd.AddCommand(configureCmd)
}
