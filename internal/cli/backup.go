package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
	"github.com/tessro/encore/internal/migrate"
)

var backupYes bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import all player data",
	Long: `Back up preferences, the queue, history, and every downloaded song
to a single JSON file, and restore it later.`,
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write a backup file",
	Long: `Write a backup. The default file name is encore-backup-YYYY-MM-DD.json
in the current directory. Use "-" to write to standard output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackupExport,
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore a backup file",
	Long: `Restore a backup. The file is validated completely before anything
is written; an invalid file changes nothing. Restored data replaces the
matching current data.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupImport,
}

var backupCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a backup file without importing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupCheck,
}

func init() {
	backupImportCmd.Flags().BoolVarP(&backupYes, "yes", "y", false, "do not ask for confirmation")

	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)
	backupCmd.AddCommand(backupCheckCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := migrate.DefaultFileName(time.Now())
	if len(args) == 1 {
		path = args[0]
	}

	return withStorage(ctx, func(a *app.App) error {
		if path == "-" {
			_, err := a.Migrator.WriteExport(ctx, stdout)
			return err
		}

		data, err := a.Migrator.ExportFile(ctx, path)
		if err != nil {
			return err
		}
		return backupReport("exported", path, data)
	})
}

func runBackupImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	// Validate before asking, so a bad file never prompts.
	data, err := decodeBackupFile(path)
	if err != nil {
		return err
	}

	if !backupYes {
		if !Interactive() {
			return errors.New("refusing to overwrite data without --yes")
		}
		ok, err := confirm(fmt.Sprintf("Replace current data with the backup from %s (%d records)?",
			time.UnixMilli(data.Timestamp).Format("2006-01-02 15:04"), data.RecordCount()))
		if err != nil || !ok {
			return err
		}
	}

	return withStorage(ctx, func(a *app.App) error {
		data, err := a.Migrator.ImportFile(ctx, path)
		if err != nil {
			return err
		}
		return backupReport("imported", path, data)
	})
}

func runBackupCheck(cmd *cobra.Command, args []string) error {
	data, err := decodeBackupFile(args[0])
	if err != nil {
		return err
	}
	return backupReport("valid", args[0], data)
}

func decodeBackupFile(path string) (*migrate.ExportData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()
	return migrate.Decode(f)
}

func backupReport(status, path string, data *migrate.ExportData) error {
	if JSONOutput() {
		return printJSON(map[string]any{
			"status":    status,
			"path":      path,
			"version":   data.Version,
			"timestamp": data.Timestamp,
			"keys":      len(data.LocalStorage),
			"records":   data.RecordCount(),
		})
	}
	NormalF("%s %s: %d settings, %d records (version %s)",
		backupVerb(status), path, len(data.LocalStorage), data.RecordCount(), data.Version)
	return nil
}

func backupVerb(status string) string {
	switch status {
	case "exported":
		return "Wrote"
	case "imported":
		return "Restored"
	default:
		return "Valid backup"
	}
}
