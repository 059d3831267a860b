package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/untoldecay/treehouse/internal/types"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// isTTY reports whether stdout is an interactive terminal, the teacher's
// convention for deciding between styled and JSON output when --json
// wasn't passed explicitly.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && termenv.NewOutput(os.Stdout).Profile != termenv.Ascii
}

func printResult(res *types.Result) {
	if jsonOutput || !isTTY() {
		_ = json.NewEncoder(os.Stdout).Encode(res)
		return
	}
	fmt.Println(labelStyle.Render("seq:") + " " + valueStyle.Render(fmt.Sprintf("%d", res.Seq)))
	if res.NodeID != "" {
		fmt.Println(labelStyle.Render("nodeId:") + " " + valueStyle.Render(string(res.NodeID)))
	}
	for _, id := range res.NewNodeIDs {
		fmt.Println(labelStyle.Render("newNodeId:") + " " + valueStyle.Render(string(id)))
	}
}

func printErr(err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
}
