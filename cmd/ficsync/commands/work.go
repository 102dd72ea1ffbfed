package commands

import (
	"context"
	"log/slog"

	"ficsync/internal/archive"
	"ficsync/internal/delivery"

	"github.com/spf13/cobra"
)

var (
	workFormat     = archive.EPUB
	workDevices    []string
	workNoDownload bool
)

func init() {
	workCmd.Flags().Var(&workFormat, "format", "The format to download, one of AZW3, EPUB, MOBI, PDF or HTML.")
	workCmd.Flags().StringArrayVar(&workDevices, "device", nil, "A configured device to deliver the work to, can be repeated.")
	workCmd.Flags().BoolVar(&workNoDownload, "no-download", false, "Deliver the file already in the download folder instead of downloading it again.")
	rootCmd.AddCommand(workCmd)
}

var workCmd = &cobra.Command{
	Use:   "work <id> [--format epub] [--device <name>]... [--no-download]",
	Short: "Downloads a single work and delivers it to devices.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp(ctx, archive.WalkOptions{})
		defer a.close()

		devices, err := resolveDevices(a.cfg, workDevices)
		if err != nil {
			a.fatal("invalid --device", err)
		}

		work, err := a.walker.ParseWork(ctx, args[0])
		if err != nil {
			a.fatal("failed to read work", err)
		}
		renderWork(work)

		if !workNoDownload {
			path, err := a.downloader.DownloadWork(ctx, work, workFormat)
			if err != nil {
				a.fatal("failed to download work", err)
			}
			slog.Info("downloaded", "path", path)
		}

		err = a.deliverAll(ctx, devices, false, func(ctx context.Context, d delivery.Deliverer) error {
			return d.DeliverWork(ctx, work, workFormat)
		})
		if err != nil {
			a.fatal("failed to deliver work", err)
		}
	},
}
