package main

import (
	"context"

	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the most recent command group",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := eng.Undo(context.Background())
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Redo the most recently undone command group",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := eng.Redo(context.Background())
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd, redoCmd)
}
