package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"ficsync/internal/archive"
	"ficsync/internal/components/telemetry"
	"ficsync/internal/config"
	"ficsync/internal/delivery"
	"ficsync/internal/pagecache"
	"ficsync/lib/restyutil"
	"ficsync/lib/serviceutil"

	"github.com/antzucaro/matchr"
)

// app is everything a command that talks to the archive needs.
type app struct {
	cfg        config.Config
	tel        telemetry.API
	otel       telemetry.Otel
	cache      *pagecache.Cache
	client     *archive.Client
	walker     archive.Walker
	downloader archive.Downloader
}

var exit = serviceutil.Fatal

func loadConfig() config.Config {
	cfg, err := config.Read(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

func newApp(ctx context.Context, opts archive.WalkOptions) *app {
	cfg := loadConfig()
	tel := telemetry.SlogAPI{}

	otel, err := telemetry.Setup(ctx, "ficsync", cfg.Telemetry)
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}

	a := &app{cfg: cfg, tel: tel, otel: otel}

	clientOpts := archive.ClientOptions{
		BaseUrl:           cfg.Archive.BaseUrl,
		RequestsPerSecond: cfg.Archive.RequestsPerSecond,
	}
	if cfg.Cache.Path != "" {
		ttl := time.Duration(cfg.Cache.TtlMinutes) * time.Minute
		if ttl <= 0 {
			ttl = time.Hour
		}
		a.cache, err = pagecache.Open(cfg.Cache.Path, ttl)
		if err != nil {
			a.fatal("failed to open page cache", err)
		}
		clientOpts.Cache = a.cache
	}

	a.client, err = archive.NewClient(clientOpts, tel)
	if err != nil {
		a.fatal("failed to create archive client", err)
	}
	if dumpHttp != "" {
		output, err := restyutil.NewDirectoryOutput(dumpHttp)
		if err != nil {
			a.fatal("failed to prepare http transcript directory", err)
		}
		restyutil.Dump(a.client.Http, output)
	}
	if cfg.Archive.Username != "" {
		err = a.client.Login(ctx, cfg.Archive.Username, cfg.Archive.Password)
		if err != nil {
			a.fatal("failed to log into the archive", err)
		}
	}

	extractor := archive.Extractor{
		BaseUrl:          a.client.BaseUrl,
		DownloadTemplate: cfg.Archive.DownloadTemplate,
		Tables:           cfg.Tables(),
	}
	a.walker = archive.NewWalker(a.client, extractor, tel, opts)
	a.downloader = archive.NewDownloader(cfg.DownloadPath, a.client, tel, opts)
	return a
}

// fatal releases the app before exiting, os.Exit skips deferred calls.
func (a *app) fatal(message string, err error) {
	a.close()
	exit(message, err)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.cache != nil {
		a.cache.Close()
	}
	err := a.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}

// resolveDevices looks up every requested device, suggesting the closest
// configured name for unknown ones.
func resolveDevices(cfg config.Config, names []string) ([]config.Device, error) {
	devices := make([]config.Device, 0, len(names))
	for _, name := range names {
		device, ok := cfg.Device(name)
		if !ok {
			if closest := closestName(name, cfg.DeviceNames()); closest != "" {
				return nil, fmt.Errorf("unknown device %q, did you mean %q?", name, closest)
			}
			return nil, fmt.Errorf("unknown device %q, configured devices: %s", name, strings.Join(cfg.DeviceNames(), ", "))
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func closestName(name string, candidates []string) string {
	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	for _, c := range candidates {
		score := matchr.JaroWinkler(strings.ToLower(name), strings.ToLower(c), false)
		if score >= 0.7 {
			ranked = append(ranked, scored{name: c, score: score})
		}
	}
	if len(ranked) == 0 {
		return ""
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked[0].name
}

// deliverAll opens a session per device and hands it to `deliver`, devices
// are served one after the other.
func (a *app) deliverAll(ctx context.Context, devices []config.Device, continueOnError bool, deliver func(context.Context, delivery.Deliverer) error) error {
	opts := delivery.DeliverOptions{
		LocalRoot:       a.cfg.DownloadPath,
		ChunkSize:       a.cfg.ChunkSize,
		Progress:        delivery.ProgressBars(os.Stderr),
		ContinueOnError: continueOnError,
	}
	for _, device := range devices {
		slog.Info("delivering", "device", device.Name, "protocol", device.Protocol)
		deliverer, err := delivery.Open(ctx, device, opts, a.tel)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", device.Name, err)
		}
		err = deliver(ctx, deliverer)
		closeErr := deliverer.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return fmt.Errorf("close session to %s: %w", device.Name, closeErr)
		}
	}
	return nil
}
