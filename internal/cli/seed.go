package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd writes the built-in modules and lessons into an empty store.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default modules and lessons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			s, err := buildStack(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			seeded, err := s.curriculum.SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("seed finished", zap.Bool("seeded", seeded))
			return nil
		},
	}
}
