package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// renderJob is the on-disk shape of a --job file: everything render also
// accepts as flags, for batch/reproducible renders.
type renderJob struct {
	Expr      string  `yaml:"expr"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	TileSize  int     `yaml:"tile_size"`
	Workers   int     `yaml:"workers"`
	OriginX   float64 `yaml:"origin_x"`
	OriginY   float64 `yaml:"origin_y"`
	PixelSize float64 `yaml:"pixel_size"`
	RegLimit  int     `yaml:"reg_limit"`
	Output    string  `yaml:"output"`
}

func loadRenderJob(path string) (*renderJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job renderJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
