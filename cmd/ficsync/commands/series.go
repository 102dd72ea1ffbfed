package commands

import (
	"context"
	"errors"
	"log/slog"

	"ficsync/internal/archive"
	"ficsync/internal/delivery"

	"github.com/spf13/cobra"
)

var (
	seriesFormat          = archive.EPUB
	seriesDevices         []string
	seriesNoDownload      bool
	seriesContinueOnError bool
)

func init() {
	seriesCmd.Flags().Var(&seriesFormat, "format", "The format to download, one of AZW3, EPUB, MOBI, PDF or HTML.")
	seriesCmd.Flags().StringArrayVar(&seriesDevices, "device", nil, "A configured device to deliver the series to, can be repeated.")
	seriesCmd.Flags().BoolVar(&seriesNoDownload, "no-download", false, "Deliver the files already in the download folder instead of downloading them again.")
	seriesCmd.Flags().BoolVar(&seriesContinueOnError, "continue-on-error", false, "Skip works that fail instead of stopping at the first failure.")
	rootCmd.AddCommand(seriesCmd)
}

var seriesCmd = &cobra.Command{
	Use:   "series <id> [--format epub] [--device <name>]... [--continue-on-error]",
	Short: "Downloads every work of a series and delivers them to devices.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp(ctx, archive.WalkOptions{ContinueOnError: seriesContinueOnError})
		defer a.close()

		devices, err := resolveDevices(a.cfg, seriesDevices)
		if err != nil {
			a.fatal("invalid --device", err)
		}

		var partial *archive.PartialError

		series, err := a.walker.ParseSeries(ctx, args[0])
		if errors.As(err, &partial) {
			slog.Warn("some works of the series were skipped", "count", len(partial.Errs), "err", err)
		} else if err != nil {
			a.fatal("failed to read series", err)
		}
		renderSeries(series)

		if !seriesNoDownload {
			paths, err := a.downloader.DownloadSeries(ctx, series, seriesFormat)
			if errors.As(err, &partial) {
				slog.Warn("some works were not downloaded", "count", len(partial.Errs), "err", err)
			} else if err != nil {
				a.fatal("failed to download series", err)
			}
			slog.Info("downloaded", "files", len(paths))
		}

		err = a.deliverAll(ctx, devices, seriesContinueOnError, func(ctx context.Context, d delivery.Deliverer) error {
			return d.DeliverSeries(ctx, series, seriesFormat)
		})
		if err != nil {
			a.fatal("failed to deliver series", err)
		}
	},
}
