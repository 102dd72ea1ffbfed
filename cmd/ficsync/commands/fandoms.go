package commands

import (
	"fmt"
	"strings"

	"ficsync/internal/fandom"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fandomsCmd)
}

var fandomsCmd = &cobra.Command{
	Use:   "fandoms <tag>...",
	Short: "Shows which folder works with the given fandom tags are filed under.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tables := loadConfig().Tables()

		t := newTable()
		t.SetTitle("Filed under: " + fandom.Canonicalize(args, tables))
		t.AppendHeader(table.Row{"Tag", "Mapped to", "Suggestions"})
		for _, tag := range args {
			mapped, ok := tables.Map[tag]
			if !ok {
				mapped = "-"
			}
			var suggestions []string
			for _, s := range tables.Suggest(tag, 3) {
				suggestions = append(suggestions, fmt.Sprintf("%s (%.2f)", s.Canonical, s.Similarity))
			}
			t.AppendRow(table.Row{tag, mapped, strings.Join(suggestions, "\n")})
		}
		t.Render()
	},
}
