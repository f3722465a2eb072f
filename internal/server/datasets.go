package server

import (
	"errors"
	"fmt"

	"github.com/strataview/strataview/internal/config"
	"github.com/strataview/strataview/internal/layer"
	"github.com/strataview/strataview/internal/layer/geojsonlayer"
	"github.com/strataview/strataview/internal/orchestrator"
	"github.com/strataview/strataview/internal/profile"
	"github.com/strataview/strataview/internal/raster"
	"github.com/strataview/strataview/internal/raster/asciigrid"
)

var ErrUnknownDataset = errors.New("unknown dataset")

// Registry resolves the dataset references in a request to loaded sources.
// Datasets are loaded once at startup and shared read-only across requests.
type Registry struct {
	rasters map[profile.RasterRef]raster.Source
	layers  map[profile.LayerRef]layer.Layer
}

func NewRegistry() *Registry {
	return &Registry{
		rasters: make(map[profile.RasterRef]raster.Source),
		layers:  make(map[profile.LayerRef]layer.Layer),
	}
}

// LoadRegistry reads every configured dataset from disk.
func LoadRegistry(cfg config.DatasetsConfig) (*Registry, error) {
	reg := NewRegistry()
	for name, path := range cfg.Rasters {
		g, err := asciigrid.Load(path)
		if err != nil {
			return nil, fmt.Errorf("raster %s: %w", name, err)
		}
		reg.AddRaster(profile.RasterRef(name), g)
	}
	for name, path := range cfg.Layers {
		l, err := geojsonlayer.Load(path)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", name, err)
		}
		reg.AddLayer(profile.LayerRef(name), l)
	}
	return reg, nil
}

func (reg *Registry) AddRaster(name profile.RasterRef, src raster.Source) {
	reg.rasters[name] = src
}

func (reg *Registry) AddLayer(name profile.LayerRef, l layer.Layer) {
	reg.layers[name] = l
}

func (reg *Registry) raster(name profile.RasterRef) (raster.Source, error) {
	src, ok := reg.rasters[name]
	if !ok {
		return nil, fmt.Errorf("%w: raster %q", ErrUnknownDataset, name)
	}
	return src, nil
}

func (reg *Registry) layer(name profile.LayerRef) (layer.Layer, error) {
	l, ok := reg.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: layer %q", ErrUnknownDataset, name)
	}
	return l, nil
}

// Resolve maps the references in a validated configuration to sources. A
// reference to a dataset the daemon does not serve is the caller's error.
func (reg *Registry) Resolve(cfg profile.Configuration) (orchestrator.Sources, error) {
	var src orchestrator.Sources
	var err error

	if src.Raster, err = reg.raster(cfg.Raster); err != nil {
		return orchestrator.Sources{}, err
	}
	if cfg.Geology != nil {
		if src.Geology, err = reg.layer(cfg.Geology.Layer); err != nil {
			return orchestrator.Sources{}, err
		}
	}
	if cfg.Structure != nil {
		if src.Structure, err = reg.layer(cfg.Structure.Layer); err != nil {
			return orchestrator.Sources{}, err
		}
	}
	if cfg.Drillholes != nil {
		if src.Collars, err = reg.layer(cfg.Drillholes.Collars); err != nil {
			return orchestrator.Sources{}, err
		}
		if src.Survey, err = reg.layer(cfg.Drillholes.Survey); err != nil {
			return orchestrator.Sources{}, err
		}
		if src.Intervals, err = reg.layer(cfg.Drillholes.Intervals); err != nil {
			return orchestrator.Sources{}, err
		}
	}
	return src, nil
}
