// Package inspect turns decoded HxA files into JSON-friendly reports and
// wraps the codec calls made by hxactl and hxad with logging and metrics.
package inspect

import (
	"encoding/hex"
	"fmt"

	"github.com/danmuck/hxa/internal/hxa"
)

const previewValues = 8

type Report struct {
	Bytes   int          `json:"bytes"`
	Version uint8        `json:"version"`
	Nodes   []NodeReport `json:"nodes"`
}

type NodeReport struct {
	Index    int             `json:"index"`
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Meta     []MetaReport    `json:"meta,omitempty"`
	Geometry *GeometryReport `json:"geometry,omitempty"`
	Image    *ImageReport    `json:"image,omitempty"`
}

type MetaReport struct {
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Length   int          `json:"length"`
	Preview  string       `json:"preview,omitempty"`
	Children []MetaReport `json:"children,omitempty"`
}

type GeometryReport struct {
	Vertices int           `json:"vertices"`
	Corners  int           `json:"corners"`
	Faces    int           `json:"faces"`
	Vertex   []LayerReport `json:"vertex_stack"`
	Corner   []LayerReport `json:"corner_stack"`
	Edge     []LayerReport `json:"edge_stack"`
	Face     []LayerReport `json:"face_stack"`
}

type ImageReport struct {
	Kind       string        `json:"kind"`
	Resolution [3]uint32     `json:"resolution"`
	Pixels     int           `json:"pixels"`
	Stack      []LayerReport `json:"stack"`
}

type LayerReport struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Components uint8  `json:"components"`
	Elements   int    `json:"elements"`
	Convention string `json:"convention,omitempty"`
}

// Build summarizes f. size is the encoded length the file was decoded from.
func Build(f *hxa.File, size int) Report {
	r := Report{
		Bytes:   size,
		Version: hxa.FormatVersion,
		Nodes:   make([]NodeReport, 0, len(f.Nodes)),
	}
	for i, n := range f.Nodes {
		nr := NodeReport{
			Index: i,
			Type:  n.Type().String(),
			Meta:  metaReports(n.Meta),
		}
		if name, ok := n.Name(); ok {
			nr.Name = name
		}
		switch c := n.Content.(type) {
		case *hxa.Geometry:
			nr.Geometry = &GeometryReport{
				Vertices: c.VertexCount(),
				Corners:  c.CornerCount(),
				Faces:    c.FaceCount(),
				Vertex:   layerReports(c.Vertices),
				Corner:   layerReports(c.Corners),
				Edge:     layerReports(c.Edges),
				Face:     layerReports(c.Faces),
			}
		case *hxa.Image:
			pixels, _ := c.PixelCount()
			nr.Image = &ImageReport{
				Kind:       c.Kind.String(),
				Resolution: c.Resolution,
				Pixels:     pixels,
				Stack:      layerReports(c.Pixels),
			}
		}
		r.Nodes = append(r.Nodes, nr)
	}
	return r
}

func metaReports(list []hxa.Meta) []MetaReport {
	if len(list) == 0 {
		return nil
	}
	out := make([]MetaReport, 0, len(list))
	for _, m := range list {
		mr := MetaReport{Name: m.Name}
		if m.Value == nil {
			out = append(out, mr)
			continue
		}
		mr.Type = m.Value.MetaType().String()
		mr.Length = m.Value.Len()
		switch v := m.Value.(type) {
		case hxa.Int64s:
			mr.Preview = previewSlice([]int64(v))
		case hxa.Doubles:
			mr.Preview = previewSlice([]float64(v))
		case hxa.NodeRefs:
			mr.Preview = previewSlice([]uint32(v))
		case hxa.Text:
			mr.Preview = truncateText(string(v), 64)
		case hxa.Binary:
			b := []byte(v)
			if len(b) > 16 {
				mr.Preview = hex.EncodeToString(b[:16]) + "..."
			} else {
				mr.Preview = hex.EncodeToString(b)
			}
		case hxa.MetaArray:
			mr.Children = metaReports(v)
		}
		out = append(out, mr)
	}
	return out
}

func layerReports(stack hxa.LayerStack) []LayerReport {
	out := make([]LayerReport, 0, len(stack))
	for _, l := range stack {
		lr := LayerReport{
			Name:       l.Name,
			Components: l.Components,
			Elements:   l.Elements(),
		}
		if l.Data != nil {
			lr.Type = l.Data.LayerType().String()
		}
		switch {
		case hxa.IsHardConvention(l.Name):
			lr.Convention = "hard"
		case hxa.IsSoftConvention(l.Name):
			lr.Convention = "soft"
		}
		out = append(out, lr)
	}
	return out
}

func previewSlice[T any](v []T) string {
	if len(v) > previewValues {
		return fmt.Sprint(v[:previewValues]) + "..."
	}
	return fmt.Sprint(v)
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
