package hxa

import (
	"bytes"
	"io"
	"math"

	"github.com/danmuck/hxa/internal/hxa/wire"
	"github.com/rs/zerolog/log"
)

// Encoder serializes in-memory files. Every count written is re-derived from
// the containers, and every invariant the decoder enforces is checked first,
// so anything Encode accepts decodes back to an equal graph.
type Encoder struct {
	limits Limits
}

func NewEncoder(limits Limits) *Encoder {
	return &Encoder{limits: limits.normalize()}
}

// Encode serializes f with DefaultLimits.
func Encode(f *File) ([]byte, error) {
	return NewEncoder(DefaultLimits()).Encode(f)
}

// Validate checks f against every structural invariant without keeping the
// encoded bytes. Call it after mutating a decoded graph.
func Validate(f *File) error {
	_, err := Encode(f)
	return err
}

// WriteTo encodes f and writes it to w.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	b, err := Encode(f)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Equal reports whether a and b are structurally equal: same nodes, metadata
// trees, and layer contents bit for bit. Invalid files are never equal.
func Equal(a, b *File) bool {
	ab, err := Encode(a)
	if err != nil {
		return false
	}
	bb, err := Encode(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func (e *Encoder) Encode(f *File) ([]byte, error) {
	s := &encodeState{
		w:      wire.NewWriter(1024),
		limits: e.limits,
		loc:    newLocation(),
	}
	if f == nil {
		f = &File{}
	}
	if err := s.file(f); err != nil {
		log.Debug().Err(err).Msg("hxa.Encode failed")
		return nil, err
	}
	log.Debug().Int("bytes", s.w.Len()).Int("nodes", len(f.Nodes)).Msg("hxa.Encode ok")
	return s.w.Bytes(), nil
}

type encodeState struct {
	w           *wire.Writer
	limits      Limits
	loc         location
	nodeCount   int
	metaEntries int
}

func (s *encodeState) fail(err error, format string, args ...any) *Error {
	return s.loc.errorf(opEncode, s.w.Len(), err, format, args...)
}

func (s *encodeState) name(n string) error {
	if err := s.w.Name(n); err != nil {
		return s.fail(err, "length=%d", len(n))
	}
	return nil
}

func (s *encodeState) count(n int, what string) error {
	if uint64(n) > math.MaxUint32 {
		return s.fail(ErrLayerLengthMismatch, "%s=%d exceeds u32", what, n)
	}
	s.w.U32(uint32(n))
	return nil
}

func (s *encodeState) file(f *File) error {
	s.loc.section = SectionHeader
	s.nodeCount = len(f.Nodes)
	s.w.Raw(Magic[:])
	s.w.U8(FormatVersion)
	if err := s.count(len(f.Nodes), "node_count"); err != nil {
		return err
	}
	for i, n := range f.Nodes {
		s.loc = location{node: i, layer: -1}
		if err := s.node(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *encodeState) node(n Node) error {
	s.loc.section = SectionHeader
	s.w.U8(uint8(n.Type()))

	s.loc.section = SectionMeta
	if err := s.metaList(n.Meta, 1); err != nil {
		return err
	}

	switch c := n.Content.(type) {
	case nil:
		return nil
	case *Geometry:
		if c == nil {
			return s.fail(ErrConventionViolation, "nil geometry content")
		}
		return s.geometry(c)
	case *Image:
		if c == nil {
			return s.fail(ErrConventionViolation, "nil image content")
		}
		return s.image(c)
	default:
		return s.fail(ErrUnknownNodeType, "content %T", c)
	}
}

func (s *encodeState) metaList(list []Meta, depth int) error {
	if len(list) > 0 && depth > s.limits.MaxMetaDepth {
		return s.fail(ErrMetadataTooDeep, "depth=%d max=%d", depth, s.limits.MaxMetaDepth)
	}
	if err := s.count(len(list), "meta_count"); err != nil {
		return err
	}
	for i, m := range list {
		s.loc.meta = append(s.loc.meta, i)
		if err := s.meta(m, depth); err != nil {
			return err
		}
		s.loc.meta = s.loc.meta[:len(s.loc.meta)-1]
	}
	return nil
}

func (s *encodeState) meta(m Meta, depth int) error {
	s.metaEntries++
	if s.metaEntries > s.limits.MaxMetaEntries {
		return s.fail(ErrMetadataTooDeep, "more than %d entries", s.limits.MaxMetaEntries)
	}
	if m.Value == nil {
		return s.fail(ErrUnknownMetaType, "nil value")
	}
	if err := s.name(m.Name); err != nil {
		return err
	}
	s.w.U8(uint8(m.Value.MetaType()))
	if m.Value.MetaType() != MetaArr {
		if err := s.count(m.Value.Len(), "array_length"); err != nil {
			return err
		}
	}

	switch v := m.Value.(type) {
	case Int64s:
		s.w.Int64s(v)
	case Doubles:
		s.w.Float64s(v)
	case NodeRefs:
		for i, ref := range v {
			if uint64(ref) >= uint64(s.nodeCount) {
				return s.fail(ErrDanglingNodeRef, "ref[%d]=%d node_count=%d", i, ref, s.nodeCount)
			}
		}
		s.w.Uint32s(v)
	case Text:
		s.w.Raw([]byte(v))
	case Binary:
		s.w.Raw(v)
	case MetaArray:
		return s.metaList(v, depth+1)
	}
	return nil
}

// layerStack writes a stack after checking that every layer holds exactly
// elements entries.
func (s *encodeState) layerStack(section Section, stack LayerStack, elements int) error {
	s.loc.section = section
	s.loc.layer = -1
	if err := s.count(len(stack), "layer_count"); err != nil {
		return err
	}
	for i, l := range stack {
		s.loc.layer = i
		if err := s.layer(l, elements); err != nil {
			return err
		}
	}
	s.loc.layer = -1
	return nil
}

func (s *encodeState) checkLayer(l Layer) error {
	if l.Components == 0 {
		return s.fail(ErrInvalidComponentCount, "components=0")
	}
	if l.Data == nil {
		return s.fail(ErrUnknownLayerType, "nil data")
	}
	return nil
}

func (s *encodeState) layer(l Layer, elements int) error {
	if err := s.checkLayer(l); err != nil {
		return err
	}
	if want := uint64(elements) * uint64(l.Components); uint64(l.Data.Len()) != want {
		return s.fail(ErrLayerLengthMismatch, "values=%d want=%d (elements=%d components=%d)",
			l.Data.Len(), want, elements, l.Components)
	}
	if err := s.name(l.Name); err != nil {
		return err
	}
	s.w.U8(l.Components)
	s.w.U8(uint8(l.Data.LayerType()))
	switch v := l.Data.(type) {
	case Uint8s:
		s.w.Raw(v)
	case Int32s:
		s.w.Int32s(v)
	case Float32s:
		s.w.Float32s(v)
	case Float64s:
		s.w.Float64s(v)
	}
	return nil
}

func (s *encodeState) geometry(g *Geometry) error {
	s.loc.layer = 0
	s.loc.section = SectionVertex
	if len(g.Vertices) == 0 {
		return s.fail(ErrConventionViolation, "vertex stack has no position layer")
	}
	if err := s.checkLayer(g.Vertices[0]); err != nil {
		return err
	}
	if msg := checkVertexLayer(g.Vertices[0]); msg != "" {
		return s.fail(ErrConventionViolation, "%s", msg)
	}
	s.loc.section = SectionCorner
	if len(g.Corners) == 0 {
		return s.fail(ErrConventionViolation, "corner stack has no reference layer")
	}
	if err := s.checkLayer(g.Corners[0]); err != nil {
		return err
	}
	if msg := checkCornerLayer(g.Corners[0]); msg != "" {
		return s.fail(ErrConventionViolation, "%s", msg)
	}
	index := g.Corners[0].Data.(Int32s)
	if len(index) > 0 && index[len(index)-1] >= 0 {
		return s.fail(ErrConventionViolation, "last corner does not end a polygon")
	}

	vertexCount := g.Vertices[0].Data.Len() / VertexLayerComponents
	cornerCount := len(index)
	faceCount := countTerminators(index)

	s.loc.section = SectionVertex
	if err := s.count(vertexCount, "vertex_count"); err != nil {
		return err
	}
	if err := s.layerStack(SectionVertex, g.Vertices, vertexCount); err != nil {
		return err
	}
	s.loc.section = SectionCorner
	if err := s.count(cornerCount, "corner_count"); err != nil {
		return err
	}
	if err := s.layerStack(SectionCorner, g.Corners, cornerCount); err != nil {
		return err
	}
	if err := s.layerStack(SectionEdge, g.Edges, cornerCount); err != nil {
		return err
	}
	s.loc.section = SectionFace
	if err := s.count(faceCount, "face_count"); err != nil {
		return err
	}
	return s.layerStack(SectionFace, g.Faces, faceCount)
}

func (s *encodeState) image(img *Image) error {
	s.loc.section = SectionImage
	if img.Kind > Image3D {
		return s.fail(ErrUnknownImageType, "kind=%d", img.Kind)
	}
	pixels, ok := img.PixelCount()
	if !ok {
		return s.fail(ErrLayerLengthMismatch, "resolution=%v overflows", img.Resolution)
	}
	s.w.U8(uint8(img.Kind))
	s.w.Uint32s(img.Resolution[:])
	return s.layerStack(SectionImage, img.Pixels, pixels)
}
