package hxa

import "fmt"

func countTerminators(index []int32) int {
	n := 0
	for _, v := range index {
		if v < 0 {
			n++
		}
	}
	return n
}

// Polygons splits a corner reference layer into vertex index lists. The last
// corner of each polygon is stored as -(index+1).
func Polygons(index []int32) ([][]uint32, error) {
	polys := make([][]uint32, 0, countTerminators(index))
	var cur []uint32
	for _, v := range index {
		if v < 0 {
			cur = append(cur, uint32(-(int64(v) + 1)))
			polys = append(polys, cur)
			cur = nil
			continue
		}
		cur = append(cur, uint32(v))
	}
	if len(cur) > 0 {
		return nil, fmt.Errorf("%w: %d corners after the last polygon", ErrConventionViolation, len(cur))
	}
	return polys, nil
}

// PolygonIndex encodes vertex index lists as a corner reference layer.
func PolygonIndex(polys [][]uint32) []int32 {
	n := 0
	for _, p := range polys {
		n += len(p)
	}
	out := make([]int32, 0, n)
	for _, p := range polys {
		for i, v := range p {
			if i == len(p)-1 {
				out = append(out, -int32(v)-1)
				continue
			}
			out = append(out, int32(v))
		}
	}
	return out
}

// Polygons decodes the reference layer of g.
func (g *Geometry) Polygons() ([][]uint32, error) {
	if len(g.Corners) == 0 {
		return nil, nil
	}
	idx, ok := g.Corners[0].Data.(Int32s)
	if !ok {
		return nil, fmt.Errorf("%w: corner layer 0 must be int32", ErrConventionViolation)
	}
	return Polygons(idx)
}
