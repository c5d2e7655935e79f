package utils

import (
	"github.com/netwatch/netmon/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Monitor struct {
		ProbeMode     string   `yaml:"probe_mode"`     // "exec" (OS ping utility) or "icmp" (native)
		ProbeInterval int      `yaml:"probe_interval"` // Delay after each probe completes (in seconds)
		ProbeTimeout  int      `yaml:"probe_timeout"`  // Per-probe timeout (in seconds), 0 = utility default
		HistorySize   int      `yaml:"history_size"`   // Availability samples kept per device
		LossMarkers   []string `yaml:"loss_markers"`   // Output substrings marking an unreachable host
	} `yaml:"monitor"`

	AutoSave struct {
		Interval int    `yaml:"interval"` // Seconds between auto-save checks
		LogDir   string `yaml:"log_dir"`  // Directory for saved journal files
	} `yaml:"autosave"`

	Registry struct {
		DevicesFile string `yaml:"devices_file"` // Path to the device registry file
	} `yaml:"registry"`

	Publisher struct {
		Enabled       bool   `yaml:"enabled"`        // Enable/disable the MQTT status publisher
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		Topic         string `yaml:"topic"`          // Topic for status batches
		QOS           int    `yaml:"qos"`            // MQTT QoS level for status messages
		Interval      int    `yaml:"interval"`       // Seconds between status batches
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty = no TLS
	} `yaml:"publisher"`

	Log struct {
		ErrorLogFile string `yaml:"error_log_file"` // Path to the process-wide error log
	} `yaml:"log"`
}

// LoadConfig loads the YAML configuration from the specified file and
// applies defaults for unset fields.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Monitor.ProbeMode == "" {
		c.Monitor.ProbeMode = "exec"
	}
	if c.Monitor.ProbeInterval <= 0 {
		c.Monitor.ProbeInterval = 5
	}
	if c.Monitor.HistorySize <= 0 {
		c.Monitor.HistorySize = 720
	}
	if c.AutoSave.Interval <= 0 {
		c.AutoSave.Interval = 86400
	}
	if c.AutoSave.LogDir == "" {
		c.AutoSave.LogDir = "."
	}
	if c.Registry.DevicesFile == "" {
		c.Registry.DevicesFile = "settings.json"
	}
	if c.Publisher.Interval <= 0 {
		c.Publisher.Interval = 30
	}
	if c.Publisher.Topic == "" {
		c.Publisher.Topic = "netmon/status"
	}
	if c.Log.ErrorLogFile == "" {
		c.Log.ErrorLogFile = "error_log.txt"
	}
}
