package cmd

import (
	"github.com/spf13/cobra"
)

var moveForce bool

var moveCmd = &cobra.Command{
	Use:   "move <source> <dest>",
	Short: "Atomically rename a file onto a destination",
	Long: `Move renames the source onto the destination in a single atomic step,
so observers of the destination see either its old contents or the
complete moved file. An existing destination is refused unless --force
is given; a forced move keeps the destination's permission bits.`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)

	moveCmd.Flags().BoolVarP(&moveForce, "force", "f", false, "overwrite an existing destination")
}

func runMove(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]

	o, logger := newOrchestrator()
	defer logger.Close()

	if err := o.MoveFile(src, dst, moveForce); err != nil {
		return err
	}
	cmd.Printf("moved %s to %s\n", src, dst)
	return nil
}
