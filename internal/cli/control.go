package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
	"github.com/tessro/encore/internal/mediasession"
)

// playerRemote is a player running in another encore process.
type playerRemote interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Restart(ctx context.Context) error
	SetVolume(ctx context.Context, v float64) error
	Status(ctx context.Context) (mediasession.RemoteStatus, error)
	Close() error
}

// dialPlayer connects to the running player. Tests replace it.
var dialPlayer = func() (playerRemote, error) {
	return mediasession.DialRemote(app.Name)
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Long:  `Pause the player running in another terminal.`,
	Args:  cobra.NoArgs,
	RunE:  runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume playback",
	Long:  `Resume the player running in another terminal.`,
	Args:  cobra.NoArgs,
	RunE:  runResume,
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to next song",
	Long:  `Skip to the next song in the running player's queue.`,
	Args:  cobra.NoArgs,
	RunE:  runNext,
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go to previous song",
	Long: `Go back to the previous song. Past the first few seconds of a song
this restarts it instead.`,
	Args: cobra.NoArgs,
	RunE: runPrev,
}

var restartCmd = &cobra.Command{
	Use:     "restart",
	Aliases: []string{"replay"},
	Short:   "Restart current song",
	Long:    `Restart the current song from the beginning.`,
	Args:    cobra.NoArgs,
	RunE:    runRestart,
}

var (
	volumeUp   bool
	volumeDown bool
)

// volumeStep is the change applied by --up and --down, in percent.
const volumeStep = 10

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show, set, or adjust volume",
	Long: `Show the running player's volume, set it (0-100), or adjust it up/down.

Examples:
  encore volume         # Show the volume
  encore volume 50      # Set volume to 50%
  encore volume --up    # Increase volume by 10%
  encore volume --down  # Decrease volume by 10%`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

func init() {
	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "increase volume by 10%")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "decrease volume by 10%")
	volumeCmd.MarkFlagsMutuallyExclusive("up", "down")

	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(volumeCmd)
}

// withPlayer dials the running player, runs fn, and closes the connection.
func withPlayer(fn func(p playerRemote) error) error {
	p, err := dialPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	return fn(p)
}

// control runs one transport command and reports it.
func control(ctx context.Context, do func(playerRemote, context.Context) error, verb, status, message string) error {
	return withPlayer(func(p playerRemote) error {
		if err := do(p, ctx); err != nil {
			return fmt.Errorf("failed to %s: %w", verb, err)
		}
		if JSONOutput() {
			return printJSON(map[string]string{"status": status})
		}
		NormalF("%s", message)
		return nil
	})
}

func runPause(cmd *cobra.Command, args []string) error {
	return control(cmd.Context(), playerRemote.Pause, "pause", "paused", "⏸ Paused")
}

func runResume(cmd *cobra.Command, args []string) error {
	return control(cmd.Context(), playerRemote.Play, "resume", "playing", "▶ Resumed")
}

func runNext(cmd *cobra.Command, args []string) error {
	return control(cmd.Context(), playerRemote.Next, "skip", "skipped", "⏭ Skipped to next song")
}

func runPrev(cmd *cobra.Command, args []string) error {
	return control(cmd.Context(), playerRemote.Previous, "go back", "previous", "⏮ Previous song")
}

func runRestart(cmd *cobra.Command, args []string) error {
	return control(cmd.Context(), playerRemote.Restart, "restart", "restarted", "⏪ Restarted song")
}

func runVolume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withPlayer(func(p playerRemote) error {
		st, err := p.Status(ctx)
		if err != nil {
			return err
		}
		current := volumePercent(st.Volume)

		if len(args) == 0 && !volumeUp && !volumeDown {
			if JSONOutput() {
				return printJSON(map[string]int{"volume": current})
			}
			NormalF("🔊 Volume: %d%%", current)
			return nil
		}

		target, err := volumeTarget(current, args, volumeUp, volumeDown)
		if err != nil {
			return err
		}
		if err := p.SetVolume(ctx, float64(target)/100); err != nil {
			return err
		}

		if JSONOutput() {
			return printJSON(map[string]int{"volume": target, "previous": current})
		}
		NormalF("🔊 Volume: %d%% (was %d%%)", target, current)
		return nil
	})
}

// volumeTarget resolves the requested volume in percent from an explicit
// level or a relative step.
func volumeTarget(current int, args []string, up, down bool) (int, error) {
	switch {
	case up:
		return min(current+volumeStep, 100), nil
	case down:
		return max(current-volumeStep, 0), nil
	}
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid volume level: %s", args[0])
	}
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("volume must be between 0 and 100")
	}
	return level, nil
}

func volumePercent(v float64) int {
	return int(math.Round(v * 100))
}
