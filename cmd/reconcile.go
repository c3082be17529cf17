package cmd

import (
	"encoding/json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"media-library/config"
	"media-library/repository"
	server2 "media-library/server"
	"media-library/service"
	"os"
)

// reconcile runs a one-shot reconciliation pass from the command line.
// Default is a dry-run analyze; --fix syncs catalog metadata; --cleanup
// deletes duplicates and orphans and requires --confirm.
func reconcile(config *config.Config) *cobra.Command {
	var fix bool
	var cleanup bool
	var confirm bool

	command := &cobra.Command{
		Use:   "reconcile",
		Short: "audit the catalog against the storage directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(config)

			repo := repository.NewRepo(config.DB)
			reconciler := service.NewReconcileService(repo, config, service.FFProbe{})

			var result interface{}
			var err error
			switch {
			case cleanup:
				result, err = reconciler.Cleanup(ctx, confirm)
			case fix:
				result, err = reconciler.Fix(ctx)
			default:
				result, err = reconciler.Analyze(ctx)
			}
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("reconciliation failed")
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	command.Flags().BoolVar(&fix, "fix", false, "sync catalog metadata to on-disk reality")
	command.Flags().BoolVar(&cleanup, "cleanup", false, "delete filesystem duplicates and orphans")
	command.Flags().BoolVar(&confirm, "confirm", false, "confirm destructive cleanup")
	return command
}
