package street

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/heatgrid/heatgrid/pkg/geom"
)

// graphJSON is the canonical serialization format for street graphs.
// Nodes and edges are sorted canonically on export, so identical graphs
// always serialize to identical bytes.
type graphJSON struct {
	Decimals int          `json:"decimals"`
	Nodes    []Coordinate `json:"nodes"`
	Edges    []edgeJSON   `json:"edges"`
}

type edgeJSON struct {
	A         Coordinate    `json:"a"`
	B         Coordinate    `json:"b"`
	Length    float64       `json:"length_m"`
	Geometry  geom.Polyline `json:"geometry"`
	Name      string        `json:"name,omitempty"`
	RoadClass string        `json:"road_class,omitempty"`
}

// MarshalGraph serializes a graph to JSON bytes with deterministic
// node and edge ordering.
func MarshalGraph(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes a graph as indented JSON to w.
func WriteGraph(g *Graph, w io.Writer) error {
	out := graphJSON{
		Decimals: g.Decimals(),
		Nodes:    g.Nodes(),
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, edgeJSON{
			A: e.A, B: e.B,
			Length:    e.Length,
			Geometry:  e.Geometry,
			Name:      e.Name,
			RoadClass: e.RoadClass,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteGraphFile writes a graph to a JSON file with 0644 permissions.
func WriteGraphFile(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}

// ReadGraph decodes a JSON street graph from r.
func ReadGraph(r io.Reader) (*Graph, error) {
	var data graphJSON
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	decimals := data.Decimals
	if decimals <= 0 {
		decimals = DefaultDecimals
	}
	g := NewGraph(decimals)
	for _, c := range data.Nodes {
		g.AddNode(c)
	}
	for _, e := range data.Edges {
		g.AddEdge(Edge{
			A: e.A, B: e.B,
			Length:    e.Length,
			Geometry:  e.Geometry,
			Name:      e.Name,
			RoadClass: e.RoadClass,
		})
	}
	return g, nil
}

// ReadGraphFile reads a JSON file and returns the decoded graph.
func ReadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}
