package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/safewrite/internal/lockfile"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <target>",
	Short: "Show the lock state of a target path",
	Long: `Inspect reads the target's lockfile (if any) and reports the holder's
pid, session, age, liveness, and staleness. A record that cannot be
parsed is reported as corrupt rather than failing the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "emit machine-readable JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	target := args[0]

	o, logger := newOrchestrator()
	defer logger.Close()

	info, err := o.InspectLock(target)
	if err != nil {
		return err
	}

	if inspectJSON {
		return printInspectJSON(cmd, info)
	}
	printInspectReport(cmd, info)
	return nil
}

// inspectReport is the JSON shape of an inspection.
type inspectReport struct {
	LockPath  string `json:"lock_path"`
	Exists    bool   `json:"exists"`
	Corrupt   bool   `json:"corrupt,omitempty"`
	PID       int    `json:"pid,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Acquired  string `json:"acquired_at,omitempty"`
	Alive     bool   `json:"alive"`
	Stale     bool   `json:"stale"`
}

func printInspectJSON(cmd *cobra.Command, info *lockfile.Info) error {
	report := inspectReport{
		LockPath: info.LockPath,
		Exists:   info.Exists,
		Corrupt:  info.Corrupt,
		Alive:    info.Alive,
		Stale:    info.Stale,
	}
	if info.Holder != nil {
		report.PID = info.Holder.PID
		report.SessionID = info.Holder.SessionID
		report.Acquired = info.Holder.AcquiredAt.Format(time.RFC3339Nano)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func printInspectReport(cmd *cobra.Command, info *lockfile.Info) {
	cmd.Println(headerStyle.Render("Lock: ") + info.LockPath)

	switch {
	case !info.Exists:
		cmd.Println(mutedStyle.Render("not locked"))
		return
	case info.Corrupt:
		cmd.Println(deadStyle.Render("CORRUPT") + mutedStyle.Render(" (record is unparseable; use clean or write --force to recover)"))
		return
	}

	h := info.Holder
	cmd.Printf("Holder:   pid %d, session %s\n", h.PID, h.SessionID)
	cmd.Printf("Acquired: %s %s\n",
		h.AcquiredAt.Format(time.RFC3339),
		mutedStyle.Render(fmt.Sprintf("(%s ago)", h.Age(time.Now().UTC()).Round(time.Second))))

	if info.Alive {
		cmd.Println("Process:  " + aliveStyle.Render("alive"))
	} else {
		cmd.Println("Process:  " + deadStyle.Render("dead"))
	}
	if info.Stale {
		cmd.Println("Status:   " + staleStyle.Render("stale (reclaimable)"))
	} else {
		cmd.Println("Status:   " + aliveStyle.Render("held"))
	}
}
