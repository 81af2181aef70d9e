package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var (
	readWait    bool
	readTimeout time.Duration
)

var readCmd = &cobra.Command{
	Use:   "read <target>",
	Short: "Print a file's contents",
	Long: `Read prints the target to stdout. No lock is taken: atomic replaces
guarantee a reader always sees a complete version.

With --wait a missing target is retried with the configured backoff,
for consumers starting before their producer's first write.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().BoolVarP(&readWait, "wait", "w", false, "retry while the target does not exist yet")
	readCmd.Flags().DurationVar(&readTimeout, "timeout", 30*time.Second, "overall deadline for --wait")
}

func runRead(cmd *cobra.Command, args []string) error {
	target := args[0]

	o, logger := newOrchestrator()
	defer logger.Close()

	var data []byte
	var err error
	if readWait {
		ctx, cancel := context.WithTimeout(cmd.Context(), readTimeout)
		defer cancel()
		data, err = o.ReadFileWait(ctx, target)
	} else {
		data, err = o.ReadFile(target)
	}
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
