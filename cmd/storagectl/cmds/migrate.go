package cmds

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/storage"
)

var prune bool

var migrateCmd = &cobra.Command{
	Use:   "migrate [object...]",
	Short: "Copy objects from the legacy store into the current one",
	Long: `Copies each named object from the legacy store into the current store
unless a current copy already exists. Object names are taken from the
arguments, or one per stdin line when no arguments are given.

With --prune each copied object is also verified and the legacy copy
removed; see the verify command for the comparison rules.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		migrator, err := buildMigrator()
		if err != nil {
			return err
		}

		names, err := objectNames(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		if prune {
			done, err := migrator.MigrateAndVerify(ctx, names)
			logger.Logger.Info("migration batch finished", "migrated", done, "total", len(names))
			return err
		}

		var errs error
		done := 0
		for _, name := range names {
			if err := migrator.MigrateObject(ctx, name); err != nil {
				errs = errors.Join(errs, err)
				continue
			}
			done++
		}
		logger.Logger.Info("migration batch finished", "migrated", done, "total", len(names))
		return errs
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [object...]",
	Short: "Verify migrated objects and prune their legacy copies",
	Long: `Reads both copies of each named object, compares sha256 digests and
deletes the legacy copy only when they match. Diverging copies are both
kept and reported; nothing is ever deleted on a mismatch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		migrator, err := buildMigrator()
		if err != nil {
			return err
		}

		names, err := objectNames(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		var errs error
		mismatches := 0
		done := 0
		for _, name := range names {
			err := migrator.VerifyObject(ctx, name)
			switch {
			case errors.Is(err, storage.ErrConsistencyMismatch):
				mismatches++
				errs = errors.Join(errs, err)
			case err != nil:
				errs = errors.Join(errs, err)
			default:
				done++
			}
		}
		logger.Logger.Info("verify batch finished",
			"pruned", done,
			"mismatches", mismatches,
			"total", len(names),
		)
		return errs
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(verifyCmd)

	migrateCmd.Flags().
		BoolVar(&prune, "prune", false, "verify each copied object and remove its legacy copy")
}
