package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	swerrors "github.com/Iron-Ham/safewrite/internal/errors"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
)

var (
	cleanPattern string
	cleanDryRun  bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <dir>",
	Short: "Remove stale lockfiles under a directory",
	Long: `Clean walks the directory tree, finds lockfiles whose target name
matches the pattern, and removes those whose holders are dead or whose
records have exceeded the configured maximum age. Live locks are left
alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVarP(&cleanPattern, "pattern", "p", "*", "glob matched against each lock's target filename")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "report stale locks without removing them")
}

func runClean(cmd *cobra.Command, args []string) error {
	root := args[0]

	matcher, err := glob.Compile(cleanPattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", cleanPattern, err)
	}

	o, logger := newOrchestrator()
	defer logger.Close()

	cleaned := 0
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, lockfile.Suffix) {
			return nil
		}

		target := strings.TrimSuffix(path, lockfile.Suffix)
		if !matcher.Match(filepath.Base(target)) {
			return nil
		}

		if cleanDryRun {
			info, err := o.InspectLock(target)
			if err != nil {
				return err
			}
			if info.Corrupt {
				cmd.Println(deadStyle.Render("corrupt ") + path)
			} else if info.Stale {
				cmd.Println(staleStyle.Render("stale   ") + path)
				cleaned++
			}
			return nil
		}

		removed, err := o.CleanStale(target)
		if err != nil {
			// A corrupt record is a finding, not a reason to abandon the
			// rest of the sweep.
			if swerrors.Is(err, swerrors.ErrLockCorrupt) {
				cmd.Println(deadStyle.Render("corrupt ") + path)
				return nil
			}
			return err
		}
		if removed {
			cmd.Println(staleStyle.Render("removed ") + path)
			cleaned++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if cleanDryRun {
		cmd.Printf("%d stale lockfile(s) found\n", cleaned)
	} else {
		cmd.Printf("%d stale lockfile(s) removed\n", cleaned)
	}
	return nil
}
