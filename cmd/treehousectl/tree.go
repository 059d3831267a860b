package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Manage trees",
}

var treeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new tree and its three distinguished nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := eng.CreateTree(context.Background(), args[0])
		if err != nil {
			printErr(err)
			return err
		}
		if jsonOutput || !isTTY() {
			return json.NewEncoder(os.Stdout).Encode(t)
		}
		fmt.Println(labelStyle.Render("treeId:") + " " + valueStyle.Render(string(t.ID)))
		fmt.Println(labelStyle.Render("rootId:") + " " + valueStyle.Render(string(t.RootID)))
		fmt.Println(labelStyle.Render("trashRootId:") + " " + valueStyle.Render(string(t.TrashRootID)))
		fmt.Println(labelStyle.Render("superRootId:") + " " + valueStyle.Render(string(t.SuperRootID)))
		return nil
	},
}

func init() {
	treeCmd.AddCommand(treeCreateCmd)
	rootCmd.AddCommand(treeCmd)
}
