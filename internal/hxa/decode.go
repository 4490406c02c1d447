package hxa

import (
	"errors"
	"io"

	"github.com/danmuck/hxa/internal/hxa/wire"
	"github.com/rs/zerolog/log"
)

const (
	opDecode = "decode"
	opEncode = "encode"
)

// Minimum encoded sizes, used to reject declared counts the remaining input
// cannot possibly hold before allocating for them.
const (
	minNodeSize  = 1 + 4
	minMetaSize  = 1 + 1 + 4
	minLayerSize = 1 + 1 + 1
)

// Decoder parses whole HxA files held in memory.
type Decoder struct {
	limits Limits
}

func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.normalize()}
}

// Decode parses b with DefaultLimits.
func Decode(b []byte) (*File, error) {
	return NewDecoder(DefaultLimits()).Decode(b)
}

// Read drains r and decodes the result with the given limits.
func Read(r io.Reader, limits Limits) (*File, error) {
	limits = limits.normalize()
	b, err := io.ReadAll(io.LimitReader(r, limits.MaxFileBytes+1))
	if err != nil {
		return nil, err
	}
	return NewDecoder(limits).Decode(b)
}

// Decode parses b. It is all-or-nothing: any structural violation aborts the
// whole file with a located *Error.
func (d *Decoder) Decode(b []byte) (*File, error) {
	loc := newLocation()
	if int64(len(b)) > d.limits.MaxFileBytes {
		return nil, loc.errorf(opDecode, 0, ErrFileTooLarge, "size=%d max=%d", len(b), d.limits.MaxFileBytes)
	}
	s := &decodeState{
		r:      wire.NewReader(b),
		limits: d.limits,
		loc:    loc,
	}
	f, err := s.file()
	if err != nil {
		log.Debug().Err(err).Int("bytes", len(b)).Msg("hxa.Decode failed")
		return nil, err
	}
	log.Debug().Int("bytes", len(b)).Int("nodes", len(f.Nodes)).Msg("hxa.Decode ok")
	return f, nil
}

type refSite struct {
	loc  location
	refs NodeRefs
}

type decodeState struct {
	r           *wire.Reader
	limits      Limits
	loc         location
	metaEntries int
	refs        []refSite
}

func (s *decodeState) fail(err error, format string, args ...any) *Error {
	return s.loc.errorf(opDecode, s.r.Offset(), err, format, args...)
}

func (s *decodeState) wrap(err error) error {
	var located *Error
	if errors.As(err, &located) {
		return err
	}
	return s.fail(err, "")
}

func (s *decodeState) u8() (uint8, error) {
	v, err := s.r.U8()
	if err != nil {
		return 0, s.wrap(err)
	}
	return v, nil
}

func (s *decodeState) u32() (uint32, error) {
	v, err := s.r.U32()
	if err != nil {
		return 0, s.wrap(err)
	}
	return v, nil
}

func (s *decodeState) name() (string, error) {
	v, err := s.r.Name()
	if err != nil {
		return "", s.wrap(err)
	}
	return v, nil
}

func (s *decodeState) file() (*File, error) {
	s.loc.section = SectionHeader
	magic, err := s.r.Bytes(3)
	if err != nil {
		return nil, s.wrap(err)
	}
	if magic[0] != Magic[0] || magic[1] != Magic[1] || magic[2] != Magic[2] {
		return nil, s.fail(ErrInvalidMagic, "got %q", magic)
	}
	// The version byte is never zero, so a zero here is the optional NUL.
	next, err := s.r.Peek()
	if err != nil {
		return nil, s.wrap(err)
	}
	if next == 0 {
		_, _ = s.r.U8()
	}
	version, err := s.u8()
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, s.fail(ErrUnsupportedVersion, "got %d want %d", version, FormatVersion)
	}
	count, err := s.u32()
	if err != nil {
		return nil, err
	}
	if !s.r.Fits(uint64(count), minNodeSize) {
		return nil, s.fail(ErrTruncatedInput, "node_count=%d", count)
	}

	f := &File{Nodes: make([]Node, count)}
	for i := range f.Nodes {
		s.loc = location{node: i, layer: -1}
		n, err := s.node()
		if err != nil {
			return nil, err
		}
		f.Nodes[i] = n
	}

	for _, site := range s.refs {
		for i, ref := range site.refs {
			if uint64(ref) >= uint64(count) {
				s.loc = site.loc
				return nil, s.fail(ErrDanglingNodeRef, "ref[%d]=%d node_count=%d", i, ref, count)
			}
		}
	}
	return f, nil
}

func (s *decodeState) node() (Node, error) {
	s.loc.section = SectionHeader
	tag, err := s.u8()
	if err != nil {
		return Node{}, err
	}
	if NodeType(tag) > NodeImage {
		return Node{}, s.fail(ErrUnknownNodeType, "tag=%d", tag)
	}
	metaCount, err := s.u32()
	if err != nil {
		return Node{}, err
	}

	s.loc.section = SectionMeta
	meta, err := s.metaList(metaCount, 1)
	if err != nil {
		return Node{}, err
	}
	n := Node{Meta: meta}

	switch NodeType(tag) {
	case NodeGeometry:
		g, err := s.geometry()
		if err != nil {
			return Node{}, err
		}
		n.Content = g
	case NodeImage:
		img, err := s.image()
		if err != nil {
			return Node{}, err
		}
		n.Content = img
	}
	return n, nil
}

func (s *decodeState) metaList(count uint32, depth int) ([]Meta, error) {
	if count == 0 {
		return nil, nil
	}
	if depth > s.limits.MaxMetaDepth {
		return nil, s.fail(ErrMetadataTooDeep, "depth=%d max=%d", depth, s.limits.MaxMetaDepth)
	}
	if !s.r.Fits(uint64(count), minMetaSize) {
		return nil, s.fail(ErrTruncatedInput, "meta_count=%d", count)
	}
	out := make([]Meta, 0, count)
	for i := 0; i < int(count); i++ {
		s.loc.meta = append(s.loc.meta, i)
		m, err := s.meta(depth)
		if err != nil {
			return nil, err
		}
		s.loc.meta = s.loc.meta[:len(s.loc.meta)-1]
		out = append(out, m)
	}
	return out, nil
}

func (s *decodeState) meta(depth int) (Meta, error) {
	s.metaEntries++
	if s.metaEntries > s.limits.MaxMetaEntries {
		return Meta{}, s.fail(ErrMetadataTooDeep, "more than %d entries", s.limits.MaxMetaEntries)
	}
	name, err := s.name()
	if err != nil {
		return Meta{}, err
	}
	tag, err := s.u8()
	if err != nil {
		return Meta{}, err
	}
	if MetaType(tag) > MetaArr {
		return Meta{}, s.fail(ErrUnknownMetaType, "tag=%d", tag)
	}
	length, err := s.u32()
	if err != nil {
		return Meta{}, err
	}
	n := int(length)

	m := Meta{Name: name}
	switch MetaType(tag) {
	case MetaInt64:
		if !s.r.Fits(uint64(length), 8) {
			return Meta{}, s.fail(ErrTruncatedInput, "array_length=%d", length)
		}
		v, err := s.r.Int64s(n)
		if err != nil {
			return Meta{}, s.wrap(err)
		}
		m.Value = Int64s(v)
	case MetaDouble:
		if !s.r.Fits(uint64(length), 8) {
			return Meta{}, s.fail(ErrTruncatedInput, "array_length=%d", length)
		}
		v, err := s.r.Float64s(n)
		if err != nil {
			return Meta{}, s.wrap(err)
		}
		m.Value = Doubles(v)
	case MetaNode:
		if !s.r.Fits(uint64(length), 4) {
			return Meta{}, s.fail(ErrTruncatedInput, "array_length=%d", length)
		}
		v, err := s.r.Uint32s(n)
		if err != nil {
			return Meta{}, s.wrap(err)
		}
		refs := NodeRefs(v)
		site := refSite{loc: s.loc, refs: refs}
		site.loc.meta = append([]int(nil), s.loc.meta...)
		s.refs = append(s.refs, site)
		m.Value = refs
	case MetaText:
		if !s.r.Fits(uint64(length), 1) {
			return Meta{}, s.fail(ErrTruncatedInput, "array_length=%d", length)
		}
		v, err := s.r.Bytes(n)
		if err != nil {
			return Meta{}, s.wrap(err)
		}
		m.Value = Text(v)
	case MetaBinary:
		if !s.r.Fits(uint64(length), 1) {
			return Meta{}, s.fail(ErrTruncatedInput, "array_length=%d", length)
		}
		v, err := s.r.Bytes(n)
		if err != nil {
			return Meta{}, s.wrap(err)
		}
		m.Value = Binary(v)
	case MetaArr:
		v, err := s.metaList(length, depth+1)
		if err != nil {
			return Meta{}, err
		}
		m.Value = MetaArray(v)
	}
	return m, nil
}

func (s *decodeState) layerStack(section Section, elements uint64) (LayerStack, error) {
	s.loc.section = section
	s.loc.layer = -1
	count, err := s.u32()
	if err != nil {
		return nil, err
	}
	if !s.r.Fits(uint64(count), minLayerSize) {
		return nil, s.fail(ErrTruncatedInput, "layer_count=%d", count)
	}
	stack := make(LayerStack, 0, count)
	for i := 0; i < int(count); i++ {
		s.loc.layer = i
		l, err := s.layer(elements)
		if err != nil {
			return nil, err
		}
		stack = append(stack, l)
	}
	s.loc.layer = -1
	return stack, nil
}

func (s *decodeState) layer(elements uint64) (Layer, error) {
	name, err := s.name()
	if err != nil {
		return Layer{}, err
	}
	components, err := s.u8()
	if err != nil {
		return Layer{}, err
	}
	if components == 0 {
		return Layer{}, s.fail(ErrInvalidComponentCount, "components=0")
	}
	tag, err := s.u8()
	if err != nil {
		return Layer{}, err
	}
	typ := LayerType(tag)
	if typ > LayerFloat64 {
		return Layer{}, s.fail(ErrUnknownLayerType, "tag=%d", tag)
	}

	values := elements * uint64(components)
	if elements != 0 && values/elements != uint64(components) {
		return Layer{}, s.fail(ErrTruncatedInput, "elements=%d components=%d", elements, components)
	}
	if !s.r.Fits(values, uint64(typ.Size())) {
		return Layer{}, s.fail(ErrTruncatedInput, "elements=%d components=%d type=%s", elements, components, typ)
	}
	n := int(values)

	l := Layer{Name: name, Components: components}
	switch typ {
	case LayerUint8:
		v, err := s.r.Uint8s(n)
		if err != nil {
			return Layer{}, s.wrap(err)
		}
		l.Data = Uint8s(v)
	case LayerInt32:
		v, err := s.r.Int32s(n)
		if err != nil {
			return Layer{}, s.wrap(err)
		}
		l.Data = Int32s(v)
	case LayerFloat32:
		v, err := s.r.Float32s(n)
		if err != nil {
			return Layer{}, s.wrap(err)
		}
		l.Data = Float32s(v)
	case LayerFloat64:
		v, err := s.r.Float64s(n)
		if err != nil {
			return Layer{}, s.wrap(err)
		}
		l.Data = Float64s(v)
	}
	return l, nil
}

func (s *decodeState) geometry() (*Geometry, error) {
	s.loc.section = SectionVertex
	vertexCount, err := s.u32()
	if err != nil {
		return nil, err
	}
	vertices, err := s.layerStack(SectionVertex, uint64(vertexCount))
	if err != nil {
		return nil, err
	}

	s.loc.section = SectionCorner
	cornerCount, err := s.u32()
	if err != nil {
		return nil, err
	}
	corners, err := s.layerStack(SectionCorner, uint64(cornerCount))
	if err != nil {
		return nil, err
	}
	edges, err := s.layerStack(SectionEdge, uint64(cornerCount))
	if err != nil {
		return nil, err
	}

	s.loc.section = SectionFace
	faceCount, err := s.u32()
	if err != nil {
		return nil, err
	}
	faces, err := s.layerStack(SectionFace, uint64(faceCount))
	if err != nil {
		return nil, err
	}

	s.loc.layer = 0
	s.loc.section = SectionVertex
	if len(vertices) == 0 {
		return nil, s.fail(ErrConventionViolation, "vertex stack has no position layer")
	}
	if msg := checkVertexLayer(vertices[0]); msg != "" {
		return nil, s.fail(ErrConventionViolation, "%s", msg)
	}
	s.loc.section = SectionCorner
	if len(corners) == 0 {
		return nil, s.fail(ErrConventionViolation, "corner stack has no reference layer")
	}
	if msg := checkCornerLayer(corners[0]); msg != "" {
		return nil, s.fail(ErrConventionViolation, "%s", msg)
	}
	index := corners[0].Data.(Int32s)
	if got := countTerminators(index); uint64(got) != uint64(faceCount) {
		return nil, s.fail(ErrFaceCountMismatch, "terminators=%d face_count=%d", got, faceCount)
	}
	if len(index) > 0 && index[len(index)-1] >= 0 {
		return nil, s.fail(ErrConventionViolation, "last corner does not end a polygon")
	}
	s.loc.layer = -1

	return &Geometry{
		Vertices: vertices,
		Corners:  corners,
		Edges:    edges,
		Faces:    faces,
	}, nil
}

func (s *decodeState) image() (*Image, error) {
	s.loc.section = SectionImage
	tag, err := s.u8()
	if err != nil {
		return nil, err
	}
	kind := ImageKind(tag)
	if kind > Image3D {
		return nil, s.fail(ErrUnknownImageType, "tag=%d", tag)
	}
	img := &Image{Kind: kind}
	for i := range img.Resolution {
		if img.Resolution[i], err = s.u32(); err != nil {
			return nil, err
		}
	}
	pixels, ok := pixelCount(kind, img.Resolution)
	if !ok {
		return nil, s.fail(ErrTruncatedInput, "resolution=%v overflows", img.Resolution)
	}
	if img.Pixels, err = s.layerStack(SectionImage, uint64(pixels)); err != nil {
		return nil, err
	}
	return img, nil
}
