package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/untoldecay/treehouse/internal/types"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Mutate nodes via the working-copy and tree-mutation surface",
}

func submitEnvelope(kind types.EnvelopeKind, payload any) (*types.Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	env := types.Envelope{
		CommandID: uuid.NewString(),
		Kind:      kind,
		Payload:   data,
		IssuedAt:  time.Now(),
	}
	return eng.Submit(context.Background(), env)
}

func splitIDs(s string) []types.NodeId {
	parts := strings.Split(s, ",")
	out := make([]types.NodeId, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, types.NodeId(p))
		}
	}
	return out
}

var nodeCreateCmd = &cobra.Command{
	Use:   "create <treeId> <parentId> <nodeType> <name>",
	Short: "Draft and immediately commit a new node",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		draftRes, err := submitEnvelope(types.KindCreateWorkingCopyForCreate, map[string]any{
			"tree_id":   args[0],
			"parent_id": args[1],
			"node_type": args[2],
			"name":      args[3],
		})
		if err != nil {
			printErr(err)
			return err
		}
		res, err := submitEnvelope(types.KindCommitWorkingCopyForCreate, map[string]any{
			"node_id":          string(draftRes.NodeID),
			"on_name_conflict": string(effectiveOnConflict()),
		})
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

var nodeUpdateCmd = &cobra.Command{
	Use:   "update <treeId> <nodeId>",
	Short: "Open, edit, and commit an existing node's name/description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		treeID, nodeID := args[0], args[1]
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")

		if _, err := submitEnvelope(types.KindCreateWorkingCopy, map[string]any{
			"tree_id": treeID, "node_id": nodeID,
		}); err != nil {
			printErr(err)
			return err
		}

		payload := map[string]any{"node_id": nodeID}
		if name != "" {
			payload["name"] = name
		}
		if description != "" {
			payload["description"] = description
		}
		if _, err := submitEnvelope(types.KindUpdateWorkingCopy, payload); err != nil {
			printErr(err)
			return err
		}

		res, err := submitEnvelope(types.KindCommitWorkingCopy, map[string]any{
			"node_id": nodeID, "on_name_conflict": string(effectiveOnConflict()),
		})
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

var nodeDiscardCmd = &cobra.Command{
	Use:   "discard <nodeId>",
	Short: "Discard an open working copy without committing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := submitEnvelope(types.KindDiscardWorkingCopy, map[string]any{"node_id": args[0]})
		if err != nil {
			printErr(err)
		}
		return err
	},
}

var nodeMoveCmd = &cobra.Command{
	Use:   "move <treeId> <toParentId> <nodeId>[,<nodeId>...]",
	Short: "Move one or more nodes to a new parent",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := submitEnvelope(types.KindMoveNodes, map[string]any{
			"tree_id": args[0], "to_parent_id": args[1], "node_ids": splitIDs(args[2]),
			"on_name_conflict": string(effectiveOnConflict()),
		})
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

var nodeTrashCmd = &cobra.Command{
	Use:   "trash <treeId> <nodeId>[,<nodeId>...]",
	Short: "Move nodes to the tree's trash root",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := submitEnvelope(types.KindMoveToTrash, map[string]any{
			"tree_id": args[0], "node_ids": splitIDs(args[1]),
		})
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

var nodeRecoverCmd = &cobra.Command{
	Use:   "recover <treeId> <nodeId>[,<nodeId>...] [toParentId]",
	Short: "Recover trashed nodes, defaulting to their original parent",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		toParent := ""
		if len(args) == 3 {
			toParent = args[2]
		}
		res, err := submitEnvelope(types.KindRecoverFromTrash, map[string]any{
			"tree_id": args[0], "node_ids": splitIDs(args[1]), "to_parent_id": toParent,
			"on_name_conflict": string(effectiveOnConflict()),
		})
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

var nodeRemoveCmd = &cobra.Command{
	Use:   "rm <treeId> <nodeId>[,<nodeId>...]",
	Short: "Hard-delete nodes and their subtrees (irreversible)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if isTTY() && !jsonOutput {
			ok, err := confirmRemoval(args[1])
			if err != nil {
				printErr(err)
				return err
			}
			if !ok {
				fmt.Println("aborted")
				return nil
			}
		}
		res, err := submitEnvelope(types.KindRemove, map[string]any{
			"tree_id": args[0], "node_ids": splitIDs(args[1]),
		})
		if err != nil {
			printErr(err)
			return err
		}
		printResult(res)
		return nil
	},
}

// confirmRemoval prompts interactively before an irreversible hard-delete,
// the teacher's huh.NewConfirm pattern for destructive operations.
func confirmRemoval(nodeIDs string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Permanently delete %s and its subtree(s)?", nodeIDs)).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&ok),
		),
	).WithTheme(huh.ThemeDracula()).Run()
	if err == huh.ErrUserAborted {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

func init() {
	nodeUpdateCmd.Flags().String("name", "", "new name")
	nodeUpdateCmd.Flags().String("description", "", "new description")

	nodeCmd.AddCommand(nodeCreateCmd, nodeUpdateCmd, nodeDiscardCmd, nodeMoveCmd, nodeTrashCmd, nodeRecoverCmd, nodeRemoveCmd)
	rootCmd.AddCommand(nodeCmd)
}
