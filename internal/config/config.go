package config

import (
	"errors"
	"fmt"
	"strings"

	"ficsync/internal/components/telemetry"
	"ficsync/internal/fandom"
	"ficsync/lib/configutil"
)

const (
	ProtocolSFTP  = "sftp"
	ProtocolEmail = "email"

	DefaultBaseUrl           = "https://archiveofourown.org"
	DefaultDownloadTemplate  = "https://download.archiveofourown.org/downloads/%s/work.%s"
	DefaultRequestsPerSecond = 1
	DefaultChunkSize         = 20000
)

// Device is a reader that downloaded works are delivered to.
type Device struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	// Address is the ssh host for sftp devices and the smtp host for email devices.
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	// DestinationRoot is the remote folder everything is filed under.
	DestinationRoot string `json:"destination_root"`
	UsesKoreader    bool   `json:"uses_koreader"`
	// KnownHosts is an OpenSSH known_hosts file the sftp host key is checked
	// against, the host key is not verified when empty.
	KnownHosts string `json:"known_hosts"`
	EmailFrom  string `json:"email_from"`
	EmailTo    string `json:"email_to"`
}

type Archive struct {
	BaseUrl           string  `json:"base_url"`
	DownloadTemplate  string  `json:"download_template"`
	Username          string  `json:"username"`
	Password          string  `json:"password"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type Cache struct {
	// Path of the sqlite page cache, the cache is disabled when empty.
	Path       string `json:"path"`
	TtlMinutes int    `json:"ttl_minutes"`
}

type Config struct {
	DownloadPath string              `json:"download_path"`
	ChunkSize    int                 `json:"chunk_size"`
	Archive      Archive             `json:"archive"`
	Cache        Cache               `json:"cache"`
	Telemetry    telemetry.Config    `json:"telemetry"`
	Devices      []Device            `json:"devices"`
	FandomMap    map[string]string   `json:"fandom_map"`
	FandomFilter map[string][]string `json:"fandom_filter"`
}

// Read reads the config at `path` (merged with its .local override), fills in
// defaults and validates it.
func Read(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg.setDefaults()
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.DownloadPath == "" {
		c.DownloadPath = "downloads"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Archive.BaseUrl == "" {
		c.Archive.BaseUrl = DefaultBaseUrl
	}
	if c.Archive.DownloadTemplate == "" {
		c.Archive.DownloadTemplate = DefaultDownloadTemplate
	}
	if c.Archive.RequestsPerSecond <= 0 {
		c.Archive.RequestsPerSecond = DefaultRequestsPerSecond
	}
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Protocol == "" {
			d.Protocol = ProtocolSFTP
		}
		if d.Port == 0 {
			switch d.Protocol {
			case ProtocolSFTP:
				d.Port = 22
			case ProtocolEmail:
				d.Port = 587
			}
		}
	}
}

// Validate reports every problem in the config at once.
func (c Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, d := range c.Devices {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("devices[%d]: missing name", i))
		} else if seen[d.Name] {
			errs = append(errs, fmt.Errorf("devices[%d]: duplicate name %q", i, d.Name))
		}
		seen[d.Name] = true

		if d.Address == "" {
			errs = append(errs, fmt.Errorf("device %q: missing address", d.Name))
		}
		switch d.Protocol {
		case ProtocolSFTP:
			if d.DestinationRoot == "" {
				errs = append(errs, fmt.Errorf("device %q: missing destination_root", d.Name))
			}
		case ProtocolEmail:
			if d.EmailTo == "" || d.EmailFrom == "" {
				errs = append(errs, fmt.Errorf("device %q: email devices need email_from and email_to", d.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("device %q: unknown protocol %q", d.Name, d.Protocol))
		}
	}
	if strings.Count(c.Archive.DownloadTemplate, "%s") != 2 {
		errs = append(errs, fmt.Errorf("archive.download_template must contain two %%s verbs"))
	}
	return errors.Join(errs...)
}

// Tables returns the fandom canonicalization tables.
func (c Config) Tables() fandom.Tables {
	return fandom.Tables{
		Map:    c.FandomMap,
		Filter: c.FandomFilter,
	}
}

// Device looks a device up by name.
func (c Config) Device(name string) (Device, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// DeviceNames returns the names of every configured device in config order.
func (c Config) DeviceNames() []string {
	names := make([]string, len(c.Devices))
	for i, d := range c.Devices {
		names[i] = d.Name
	}
	return names
}
