package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/heatgrid/heatgrid/pkg/attach"
	"github.com/heatgrid/heatgrid/pkg/geom"
	"github.com/heatgrid/heatgrid/pkg/pipeline"
	"github.com/heatgrid/heatgrid/pkg/street"
)

// streetsFile is the on-disk street extract: a coordinate frame and the
// raw ways delivered by the GIS export.
type streetsFile struct {
	CRS  street.CRS `json:"crs"`
	Ways []wayJSON  `json:"ways"`
}

type wayJSON struct {
	Parts     []geom.Polyline `json:"parts"`
	Name      string          `json:"name,omitempty"`
	RoadClass string          `json:"road_class,omitempty"`
}

// loadStreets reads a street extract from a JSON file.
func loadStreets(path string) (street.CRS, []street.Way, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return street.CRS{}, nil, fmt.Errorf("read streets %s: %w", path, err)
	}
	var f streetsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return street.CRS{}, nil, fmt.Errorf("decode streets %s: %w", path, err)
	}
	ways := make([]street.Way, len(f.Ways))
	for i, w := range f.Ways {
		ways[i] = street.Way{Parts: w.Parts, Name: w.Name, RoadClass: w.RoadClass}
	}
	return f.CRS, ways, nil
}

// loadBuildings reads the consumer list from a JSON file. Attachment
// fields present in the file are ignored; the pipeline recomputes them.
func loadBuildings(path string) ([]attach.Building, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read buildings %s: %w", path, err)
	}
	var buildings []attach.Building
	if err := json.Unmarshal(data, &buildings); err != nil {
		return nil, fmt.Errorf("decode buildings %s: %w", path, err)
	}
	for i := range buildings {
		buildings[i].AttachPoint = nil
		buildings[i].AttachNode = nil
		buildings[i].ServiceLength = 0
	}
	return buildings, nil
}

// loadInput bundles both loaders into a pipeline input.
func loadInput(streetsPath, buildingsPath string) (pipeline.Input, error) {
	crs, ways, err := loadStreets(streetsPath)
	if err != nil {
		return pipeline.Input{}, err
	}
	buildings, err := loadBuildings(buildingsPath)
	if err != nil {
		return pipeline.Input{}, err
	}
	return pipeline.Input{Ways: ways, CRS: crs, Buildings: buildings}, nil
}
