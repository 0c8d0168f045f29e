package initiator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrSnakeDoc/srcwatch/internal/globalconfig"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/prompter"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
	"github.com/MrSnakeDoc/srcwatch/internal/utils/pathutils"
)

// ErrDeclined is returned when the user refuses to overwrite an existing config.
var ErrDeclined = errors.New("existing configuration kept")

const catalogHeader = "source_id,url,title,owner,category,update_frequency,last_checked\n"

type Initiator struct {
	ConfigPath  string
	CatalogPath string
	StateDir    string
	Force       bool
	Prompter    prompter.Prompter
}

func New(configPath, catalogPath, stateDir string, p prompter.Prompter) *Initiator {
	return &Initiator{
		ConfigPath:  configPath,
		CatalogPath: catalogPath,
		StateDir:    stateDir,
		Prompter:    p,
	}
}

func (i *Initiator) Execute() (*globalconfig.PersistentConfig, error) {
	if ok, err := utils.FileExists(i.ConfigPath); err != nil {
		return nil, err
	} else if ok && !i.Force {
		if i.Prompter == nil {
			return nil, ErrDeclined
		}
		yes, err := i.Prompter.Confirm(fmt.Sprintf("%s already exists, overwrite?", i.ConfigPath))
		if err != nil || !yes {
			return nil, ErrDeclined
		}
	}

	catalogPath, err := pathutils.ToAbsolutePath(i.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	stateDir, err := pathutils.ToAbsolutePath(i.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state dir: %w", err)
	}

	if ok, _ := utils.FileExists(catalogPath); !ok && filepath.Ext(catalogPath) == ".csv" {
		if err := os.MkdirAll(filepath.Dir(catalogPath), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(catalogPath, []byte(catalogHeader), 0o644); err != nil {
			return nil, fmt.Errorf("failed to create catalog: %w", err)
		}
		logger.Success("Created empty catalog %s", catalogPath)
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	cfg := globalconfig.Default(catalogPath, stateDir)
	if err := cfg.Save(i.ConfigPath); err != nil {
		return nil, err
	}
	return cfg, nil
}
