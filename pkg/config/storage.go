package config

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/utils"
)

// Filesystem given to file based plugins.
type StorageConfig struct {
	// "os" or "memory"
	Type string `mapstructure:"type"`
	// Optional root; plugin paths are resolved below it.
	Root string `mapstructure:"root"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "os"
	}
}

func (c *StorageConfig) Validate() error {
	switch c.Type {
	case "os", "memory":
		return nil
	}
	return fmt.Errorf("%w: invalid storage type %q", utils.ErrBadRequest, c.Type)
}

func (c *StorageConfig) CreateFs() (utils.Fs, error) {
	var fs afero.Fs

	switch c.Type {
	case "", "os":
		fs = afero.NewOsFs()
	case "memory":
		fs = afero.NewMemMapFs()
	default:
		return nil, fmt.Errorf("%w: invalid storage type %q", utils.ErrBadRequest, c.Type)
	}

	if c.Root != "" {
		if err := fs.MkdirAll(c.Root, 0777); err != nil {
			return nil, err
		}
		fs = afero.NewBasePathFs(fs, c.Root)
	}

	return fs, nil
}

func (c *StorageConfig) Log() {
	log.Infof("  storage.type = %s", c.Type)
	if c.Root != "" {
		log.Infof("  storage.root = %s", c.Root)
	}
}
