package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/safewrite/internal/codec"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
)

var (
	writeSession  string
	writeForce    bool
	writeSimulate bool
	writeFrom     string
	writeFormat   string
)

var writeCmd = &cobra.Command{
	Use:   "write <target> [data]",
	Short: "Atomically replace a file's contents under the lock protocol",
	Long: `Write acquires the target's lockfile, replaces the target via a
temp-sibling rename, and releases the lock. The payload comes from the
data argument, --from FILE, or stdin (--from -).

With --simulate nothing is written: the command reports what the
acquisition would do and exits non-zero if it would block.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)

	writeCmd.Flags().StringVarP(&writeSession, "session", "s", "", "session label (hashed into the lock's session id)")
	writeCmd.Flags().BoolVarP(&writeForce, "force", "f", false, "override any existing lock, live or stale")
	writeCmd.Flags().BoolVarP(&writeSimulate, "simulate", "n", false, "report the acquisition decision without writing")
	writeCmd.Flags().StringVar(&writeFrom, "from", "", "read the payload from FILE (- for stdin)")
	writeCmd.Flags().StringVar(&writeFormat, "format", "", fmt.Sprintf("validate the payload parses as one of: %v", codec.Names()))
}

func runWrite(cmd *cobra.Command, args []string) error {
	target := args[0]

	data, err := writePayload(cmd, args)
	if err != nil {
		return err
	}

	if writeFormat != "" {
		c, err := codec.ByName(writeFormat)
		if err != nil {
			return err
		}
		var probe any
		if err := c.Unmarshal(data, &probe); err != nil {
			return fmt.Errorf("payload is not valid %s: %w", c.Name(), err)
		}
	}

	mode := lockfile.ModeNormal
	switch {
	case writeForce && writeSimulate:
		return fmt.Errorf("--force and --simulate are mutually exclusive")
	case writeForce:
		mode = lockfile.ModeForce
	case writeSimulate:
		mode = lockfile.ModeSimulate
	}

	o, logger := newOrchestrator()
	defer logger.Close()

	if mode == lockfile.ModeSimulate {
		dec, err := o.Plan(target, lockfile.ModeNormal)
		if err != nil {
			return err
		}
		printDecision(cmd, dec)
		if dec.Action == lockfile.ActionBlocked {
			return fmt.Errorf("write would block on the current holder")
		}
		return nil
	}

	if err := o.WriteFile(cmd.Context(), target, data, mode, writeSession); err != nil {
		return err
	}
	cmd.Printf("wrote %d bytes to %s\n", len(data), target)
	return nil
}

// writePayload resolves the payload from the data argument, --from, or stdin.
func writePayload(cmd *cobra.Command, args []string) ([]byte, error) {
	switch {
	case len(args) == 2 && writeFrom != "":
		return nil, fmt.Errorf("cannot combine a data argument with --from")
	case len(args) == 2:
		return []byte(args[1]), nil
	case writeFrom == "-":
		return io.ReadAll(cmd.InOrStdin())
	case writeFrom != "":
		return os.ReadFile(writeFrom)
	default:
		return nil, fmt.Errorf("no payload: pass a data argument or --from")
	}
}

func printDecision(cmd *cobra.Command, dec lockfile.Decision) {
	switch dec.Action {
	case lockfile.ActionAcquire:
		cmd.Println(aliveStyle.Render("would acquire") + mutedStyle.Render(" (no existing lock)"))
	case lockfile.ActionReclaimStale:
		cmd.Println(staleStyle.Render("would reclaim stale lock") +
			mutedStyle.Render(fmt.Sprintf(" (holder pid %d)", dec.Holder.PID)))
	case lockfile.ActionReclaimForced:
		cmd.Println(staleStyle.Render("would force over existing lock") +
			mutedStyle.Render(fmt.Sprintf(" (holder pid %d)", dec.Holder.PID)))
	case lockfile.ActionBlocked:
		cmd.Println(deadStyle.Render("would block") +
			mutedStyle.Render(fmt.Sprintf(" (held by pid %d, session %s)", dec.Holder.PID, dec.Holder.SessionID)))
	}
}
