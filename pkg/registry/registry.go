package registry

import (
	"fmt"
	"os"

	"github.com/netwatch/netmon/pkg/file"
)

// DeviceRegistry persists the host address to display name mapping.
type DeviceRegistry interface {
	Load() (map[string]string, error)
	Save(devices map[string]string) error
}

// settings is the on-disk shape of the registry file.
type settings struct {
	Devices map[string]string `json:"devices"`
}

// FileRegistry stores the device mapping in a JSON settings file.
type FileRegistry struct {
	path    string
	fileOps file.FileOperations
}

// NewFileRegistry creates a registry backed by the JSON file at path.
func NewFileRegistry(path string, fileOps file.FileOperations) *FileRegistry {
	return &FileRegistry{
		path:    path,
		fileOps: fileOps,
	}
}

// Load reads the device mapping. A missing file is not an error: it yields
// an empty mapping so a fresh install starts with no devices.
func (r *FileRegistry) Load() (map[string]string, error) {
	var s settings
	if err := r.fileOps.ReadJsonFile(r.path, &s); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to load device registry %s: %w", r.path, err)
	}
	if s.Devices == nil {
		s.Devices = map[string]string{}
	}
	return s.Devices, nil
}

// Save writes the device mapping back to the settings file.
func (r *FileRegistry) Save(devices map[string]string) error {
	if err := r.fileOps.WriteJsonFile(r.path, settings{Devices: devices}); err != nil {
		return fmt.Errorf("failed to save device registry %s: %w", r.path, err)
	}
	return nil
}
