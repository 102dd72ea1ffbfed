package commands

import (
	"ficsync/internal/config"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(devicesCmd)
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Lists the configured devices.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Protocol", "Address", "Destination", "KOReader"})
		for _, d := range cfg.Devices {
			destination := d.DestinationRoot
			if d.Protocol == config.ProtocolEmail {
				destination = d.EmailTo
			}
			koreader := ""
			if d.UsesKoreader {
				koreader = "yes"
			}
			t.AppendRow(table.Row{d.Name, d.Protocol, d.Address, destination, koreader})
		}
		t.Render()
	},
}
