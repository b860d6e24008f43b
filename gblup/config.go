package gblup

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config collects pipeline settings. ReadConfig decodes one or more toml
// files in order, later files overriding earlier ones, so a global file can
// be layered with a per-run one.
type Config struct {
	PhenoFile    string `toml:"pheno_file"`
	CovarFile    string `toml:"covar_file"`
	GenoNpyFile  string `toml:"geno_npy_file"`
	MarkerIDFile string `toml:"marker_id_file"`

	TraitName string `toml:"trait_name"`

	// RefMeanDiag rescales the genomic relationship matrix to this mean
	// diagonal; zero keeps the natural Z'Z scale.
	RefMeanDiag float64 `toml:"ref_mean_diag"`

	RunLRT       bool    `toml:"run_lrt"`
	LrtThreshold float64 `toml:"lrt_threshold"`
	ReturnZScore bool    `toml:"return_zscore"`
	Restricted   bool    `toml:"restricted"`

	MaxFitIters   int `toml:"max_fit_iters"`
	MaxFitSeconds int `toml:"max_fit_seconds"`

	SaveModel     bool   `toml:"save_model"`
	ModelBasename string `toml:"model_basename"`
	OutDir        string `toml:"output_dir"`

	NumWorkers  int    `toml:"num_workers"`
	MemoryLimit uint64 `toml:"memory_limit"`
}

// ReadConfig layers the given toml files into one Config.
func ReadConfig(paths ...string) (*Config, error) {
	config := new(Config)
	for _, p := range paths {
		if _, err := toml.DecodeFile(p, config); err != nil {
			return nil, fmt.Errorf("gblup: reading config %s: %w", p, err)
		}
	}
	if config.LrtThreshold == 0 {
		config.LrtThreshold = 0.05
	}
	return config, nil
}
