package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const streetsJSON = `{
  "crs": {"name": "EPSG:25832", "unit": "m"},
  "ways": [
    {"parts": [[{"x": 0, "y": 0}, {"x": 100, "y": 0}]], "name": "Main St", "road_class": "residential"},
    {"parts": [[{"x": 100, "y": 0}, {"x": 100, "y": 80}]]}
  ]
}`

const buildingsJSON = `[
  {"id": "b1", "point": {"x": 60, "y": 15}, "design_load_kw": 50},
  {"id": "b2", "point": {"x": 85, "y": 40}, "annual_demand_mwh": 90,
   "attach_node": {"x": 1, "y": 1}, "service_length_m": 999}
]`

func TestLoadStreets(t *testing.T) {
	path := writeFile(t, "streets.json", streetsJSON)

	crs, ways, err := loadStreets(path)
	if err != nil {
		t.Fatalf("loadStreets() error = %v", err)
	}
	if crs.Name != "EPSG:25832" || crs.Unit != "m" {
		t.Errorf("crs = %+v, want EPSG:25832/m", crs)
	}
	if len(ways) != 2 {
		t.Fatalf("ways = %d, want 2", len(ways))
	}
	if ways[0].Name != "Main St" || ways[0].RoadClass != "residential" {
		t.Errorf("way metadata not carried: %+v", ways[0])
	}
	if len(ways[0].Parts) != 1 || len(ways[0].Parts[0]) != 2 {
		t.Errorf("way geometry not carried: %+v", ways[0].Parts)
	}
}

func TestLoadBuildingsStripsAttachment(t *testing.T) {
	path := writeFile(t, "buildings.json", buildingsJSON)

	buildings, err := loadBuildings(path)
	if err != nil {
		t.Fatalf("loadBuildings() error = %v", err)
	}
	if len(buildings) != 2 {
		t.Fatalf("buildings = %d, want 2", len(buildings))
	}
	// Stale attachment data in the file must not leak into the pipeline.
	for _, b := range buildings {
		if b.AttachNode != nil || b.AttachPoint != nil || b.ServiceLength != 0 {
			t.Errorf("building %s carries stale attachment fields", b.ID)
		}
	}
	if buildings[0].DesignLoad != 50 {
		t.Errorf("b1 design load = %v, want 50", buildings[0].DesignLoad)
	}
	if buildings[1].AnnualDemand != 90 {
		t.Errorf("b2 annual demand = %v, want 90", buildings[1].AnnualDemand)
	}
}

func TestLoadInputMissingFile(t *testing.T) {
	if _, err := loadInput("/nonexistent/streets.json", "/nonexistent/buildings.json"); err == nil {
		t.Fatal("expected error for missing files")
	}
}
