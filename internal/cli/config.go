package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/config"
	apperrors "github.com/tessro/encore/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing encore configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration values, including environment overrides.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value. The result is validated before it is saved.

Keys are written as section.key, for example:
  catalog.base_url            Catalog API base URL
  download.policy             single or per-song
  download.preferred_quality  e.g. 320kbps
  offline.check_url           URL checked for reachability
  playback.volume             Startup volume (0-100)
  playback.shuffle            true/false
  tui.theme                   auto, dark, or light

Examples:
  encore config set playback.volume 60
  encore config set download.policy per-song`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetQualityCmd = &cobra.Command{
	Use:   "set-quality",
	Short: "Interactively select the download quality",
	RunE:  runConfigSetQuality,
}

// qualities are the download variants the catalog offers.
var qualities = []string{"12kbps", "48kbps", "96kbps", "160kbps", "320kbps"}

var intKeys = map[string]bool{
	"catalog.timeout":            true,
	"download.max_parallel":      true,
	"download.timeout":           true,
	"offline.interval":           true,
	"offline.timeout":            true,
	"playback.volume":            true,
	"playback.restart_threshold": true,
	"tui.refresh_interval":       true,
}

var boolKeys = map[string]bool{
	"download.images":       true,
	"playback.shuffle":      true,
	"playback.audio":        true,
	"media_session.enabled": true,
	"notify.desktop":        true,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetQualityCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if JSONOutput() {
		return printJSON(cfg)
	}

	encoder := toml.NewEncoder(stdout)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("%w at %s", apperrors.ErrConfigNotFound, configPath)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	if err := writeConfig(configPath, config.Default()); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}
	NormalF("Created config file: %s", configPath)
	NormalF("\nNext steps:")
	NormalF("  1. Review the catalog and storage settings with 'encore config show'")
	NormalF("  2. Play something with 'encore play --search <query>'")
	return nil
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.Path()
}

// writeConfig encodes v as TOML at path with a header comment.
func writeConfig(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, _ = fmt.Fprintln(f, "# encore configuration")
	_, _ = fmt.Fprintln(f, "")

	encoder := toml.NewEncoder(f)
	encoder.Indent = "  "
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// typedValue converts a command-line value to the TOML type of key.
func typedValue(key, value string) (any, error) {
	switch {
	case intKeys[key]:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("value must be an integer for %s", key)
		}
		return n, nil
	case boolKeys[key]:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("value must be true or false for %s", key)
		}
		return b, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	configPath := getConfigPath()

	original, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w at %s", apperrors.ErrConfigNotFound, configPath)
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	rawConfig := map[string]any{}
	if _, err := toml.Decode(string(original), &rawConfig); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" || strings.Contains(field, ".") {
		return fmt.Errorf("invalid key format. Use 'section.key' (e.g., playback.volume)")
	}

	typed, err := typedValue(key, value)
	if err != nil {
		return err
	}

	sectionMap, ok := rawConfig[section].(map[string]any)
	if !ok {
		sectionMap = make(map[string]any)
		rawConfig[section] = sectionMap
	}
	sectionMap[field] = typed

	if err := writeConfig(configPath, rawConfig); err != nil {
		return err
	}

	// Roll back anything the loader rejects.
	updated, err := config.LoadFrom(configPath)
	if err == nil {
		err = updated.Validate()
	}
	if err != nil {
		_ = os.WriteFile(configPath, original, 0644)
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	}
	NormalF("Set %s = %s", key, value)
	return nil
}

func runConfigSetQuality(cmd *cobra.Command, args []string) error {
	if !Interactive() {
		return fmt.Errorf("set-quality needs a terminal. Use 'encore config set download.preferred_quality <quality>'")
	}

	options := make([]huh.Option[string], len(qualities))
	for i, q := range qualities {
		label := q
		if q == cfg.Download.PreferredQuality {
			label += " [current]"
		}
		options[i] = huh.NewOption(label, q)
	}

	selected := cfg.Download.PreferredQuality
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Download quality").
				Description("Used when a song offers several audio variants").
				Options(options...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("selection cancelled: %w", err)
	}

	return runConfigSet(cmd, []string{"download.preferred_quality", selected})
}
