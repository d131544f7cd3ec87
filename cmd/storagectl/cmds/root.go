package cmds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openoj/judgehub/internal/config"
	"github.com/openoj/judgehub/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "storagectl",
	Short: "Blob store maintenance for the legacy to current migration",
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// buildMigrator wires both stores from config. The legacy section is
// optional for the server but required here.
func buildMigrator() (*storage.Migrator, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.ObjectStore.Legacy == nil {
		return nil, errors.New("no legacy object store configured, nothing to migrate")
	}

	legacy, err := storage.NewMinioStore(
		cfg.ObjectStore.Legacy.Endpoint,
		cfg.ObjectStore.Legacy.AccessKeyID,
		cfg.ObjectStore.Legacy.SecretAccessKey,
		cfg.ObjectStore.Legacy.SSLEnabled,
		cfg.ObjectStore.Legacy.BucketName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to construct legacy store: %w", err)
	}

	current, err := storage.NewMinioStore(
		cfg.ObjectStore.Current.Endpoint,
		cfg.ObjectStore.Current.AccessKeyID,
		cfg.ObjectStore.Current.SecretAccessKey,
		cfg.ObjectStore.Current.SSLEnabled,
		cfg.ObjectStore.Current.BucketName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to construct current store: %w", err)
	}

	return storage.NewMigrator(legacy, current), nil
}

// objectNames returns the positional args, or one name per stdin line when
// no args were given so batches can be piped in.
func objectNames(args []string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	names := make([]string, 0)
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return nil, errors.New("no object names given")
	}

	return names, nil
}
