package hxa

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/hxa/internal/hxa/wire"
	"github.com/danmuck/hxa/internal/testutil/testlog"
)

func sampleFile() *File {
	transform := make(Doubles, 16)
	for i := 0; i < 4; i++ {
		transform[i*5] = 1
	}
	return &File{Nodes: []Node{
		{
			Meta: []Meta{
				{Name: MetaName, Value: Text("quad_and_tri")},
				{Name: MetaTransform, Value: transform},
				{Name: "albedo_image", Value: NodeRefs{1}},
			},
			Content: &Geometry{
				Vertices: LayerStack{
					{Name: VertexLayerName, Components: 3, Data: Float32s{
						0, 0, 0,
						1, 0, 0,
						1, 1, 0,
						0, 1, 0,
						2, 0.5, 0,
					}},
					{Name: LayerColor, Components: 4, Data: Uint8s{
						255, 0, 0, 255,
						0, 255, 0, 255,
						0, 0, 255, 255,
						255, 255, 255, 255,
						0, 0, 0, 255,
					}},
				},
				Corners: LayerStack{
					{Name: CornerLayerName, Components: 1, Data: Int32s{0, 1, 2, -4, 1, 4, -3}},
					{Name: LayerUV, Components: 2, Data: Float64s{0, 0, 1, 0, 1, 1, 0, 1, 0, 0, 1, 0, 0.5, 1}},
				},
				Edges: LayerStack{
					{Name: EdgeNeighbourLayer, Components: 1, Data: Int32s{-1, 4, -1, -1, -1, -1, 1}},
				},
				Faces: LayerStack{
					{Name: LayerMaterialID, Components: 1, Data: Int32s{0, 1}},
				},
			},
		},
		{
			Content: &Image{
				Kind:       Image2D,
				Resolution: [3]uint32{2, 2, 1},
				Pixels: LayerStack{
					{Name: ImageAlbedo, Components: 4, Data: Uint8s{
						1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
					}},
				},
			},
		},
		{
			Meta: []Meta{
				{Name: "settings", Value: MetaArray{
					{Name: "lod", Value: Int64s{-1, 2, 1 << 40}},
					{Name: "blob", Value: Binary{0x00, 0xff, 0x10}},
					{Name: "inner", Value: MetaArray{
						{Name: "note", Value: Text("nested")},
						{Name: "scale", Value: Doubles{0.5}},
					}},
				}},
				{Name: "targets", Value: NodeRefs{0, 1, 3}},
			},
		},
		{
			Content: &Image{
				Kind:       ImageCube,
				Resolution: [3]uint32{1, 1, 1},
				Pixels: LayerStack{
					{Name: ImageLight, Components: 1, Data: Float32s{1, 2, 3, 4, 5, 6}},
					{Name: ImageDisplacement, Components: 1, Data: Float64s{-1, -2, -3, -4, -5, -6}},
				},
			},
		},
	}}
}

func mustEncode(t *testing.T, f *File) []byte {
	t.Helper()
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func expectKind(t *testing.T, err error, kind error) *Error {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	var located *Error
	if !errors.As(err, &located) {
		t.Fatalf("expected *Error, got %T", err)
	}
	return located
}

func TestRoundTripEncodeDecode(t *testing.T) {
	testlog.Start(t)
	in := sampleFile()
	b := mustEncode(t, in)

	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("decoded graph differs from input:\n got=%#v\nwant=%#v", out, in)
	}
	if !Equal(out, in) {
		t.Fatalf("Equal reported mismatch for round-tripped file")
	}

	b2 := mustEncode(t, out)
	if !bytes.Equal(b, b2) {
		t.Fatalf("re-encode is not byte-exact")
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	testlog.Start(t)
	b := mustEncode(t, sampleFile())
	first, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := Decode(mustEncode(t, first))
	if err != nil {
		t.Fatalf("decode again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("decode(encode(decode(b))) != decode(b)")
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	testlog.Start(t)
	b := mustEncode(t, &File{Nodes: []Node{{}}})
	want := []byte{'H', 'x', 'A', 0, FormatVersion, 1, 0, 0, 0, byte(NodeMetaOnly), 0, 0, 0, 0}
	if !bytes.Equal(b, want) {
		t.Fatalf("layout mismatch: got=%v want=%v", b, want)
	}
}

func TestDecodeAcceptsThreeByteMagic(t *testing.T) {
	testlog.Start(t)
	in := sampleFile()
	b := mustEncode(t, in)
	short := append([]byte{'H', 'x', 'A'}, b[4:]...)
	out, err := Decode(short)
	if err != nil {
		t.Fatalf("decode 3-byte magic: %v", err)
	}
	if !Equal(out, in) {
		t.Fatalf("3-byte magic decoded to a different graph")
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	testlog.Start(t)
	b := mustEncode(t, sampleFile())
	b[1] = 'X'
	_, err := Decode(b)
	expectKind(t, err, ErrInvalidMagic)
}

func TestDecodeVersionGate(t *testing.T) {
	testlog.Start(t)
	for _, v := range []byte{1, 2, 4, 0xff} {
		b := mustEncode(t, sampleFile())
		b[4] = v
		_, err := Decode(b)
		e := expectKind(t, err, ErrUnsupportedVersion)
		if e.Node != -1 || e.Section != SectionHeader {
			t.Fatalf("version error not located at header: %+v", e)
		}
	}
}

func TestDecodeTruncatedAtEveryPrefix(t *testing.T) {
	testlog.Start(t)
	b := mustEncode(t, sampleFile())
	for i := 0; i < len(b); i++ {
		_, err := Decode(b[:i])
		if !errors.Is(err, ErrTruncatedInput) {
			t.Fatalf("prefix %d/%d: expected ErrTruncatedInput, got %v", i, len(b), err)
		}
	}
}

func TestDecodeHugeCountsDoNotAllocate(t *testing.T) {
	testlog.Start(t)
	w := wire.NewWriter(0)
	w.Raw(Magic[:])
	w.U8(FormatVersion)
	w.U32(0xFFFFFFFF)
	w.U8(uint8(NodeMetaOnly))
	_, err := Decode(w.Bytes())
	expectKind(t, err, ErrTruncatedInput)

	w = rawHeader(1)
	w.U8(uint8(NodeMetaOnly))
	w.U32(1)
	_ = w.Name("blob")
	w.U8(uint8(MetaBinary))
	w.U32(0xFFFFFFF0)
	_, err = Decode(w.Bytes())
	e := expectKind(t, err, ErrTruncatedInput)
	if e.Node != 0 || e.Section != SectionMeta || len(e.Meta) != 1 {
		t.Fatalf("unexpected location: %+v", e)
	}
}

func TestDecodeUnknownTags(t *testing.T) {
	testlog.Start(t)

	w := rawHeader(1)
	w.U8(7)
	w.U32(0)
	_, err := Decode(w.Bytes())
	expectKind(t, err, ErrUnknownNodeType)

	w = rawHeader(1)
	w.U8(uint8(NodeMetaOnly))
	w.U32(1)
	_ = w.Name("x")
	w.U8(6)
	w.U32(0)
	_, err = Decode(w.Bytes())
	expectKind(t, err, ErrUnknownMetaType)

	w = rawHeader(1)
	w.U8(uint8(NodeImage))
	w.U32(0)
	w.U8(4)
	w.Uint32s([]uint32{1, 1, 1})
	w.U32(0)
	_, err = Decode(w.Bytes())
	expectKind(t, err, ErrUnknownImageType)

	w = rawHeader(1)
	w.U8(uint8(NodeImage))
	w.U32(0)
	w.U8(uint8(Image1D))
	w.Uint32s([]uint32{2, 1, 1})
	w.U32(1)
	_ = w.Name("mask")
	w.U8(1)
	w.U8(9)
	w.Raw([]byte{1, 2})
	_, err = Decode(w.Bytes())
	e := expectKind(t, err, ErrUnknownLayerType)
	if e.Section != SectionImage || e.Layer != 0 {
		t.Fatalf("unexpected location: %+v", e)
	}

	w = rawHeader(1)
	w.U8(uint8(NodeImage))
	w.U32(0)
	w.U8(uint8(Image1D))
	w.Uint32s([]uint32{2, 1, 1})
	w.U32(1)
	_ = w.Name("mask")
	w.U8(0)
	w.U8(uint8(LayerUint8))
	_, err = Decode(w.Bytes())
	expectKind(t, err, ErrInvalidComponentCount)
}

func TestDecodeDanglingNodeRef(t *testing.T) {
	testlog.Start(t)
	w := rawHeader(1)
	w.U8(uint8(NodeMetaOnly))
	w.U32(1)
	_ = w.Name("target")
	w.U8(uint8(MetaNode))
	w.U32(1)
	w.U32(5)
	_, err := Decode(w.Bytes())
	e := expectKind(t, err, ErrDanglingNodeRef)
	if e.Node != 0 || len(e.Meta) != 1 || e.Meta[0] != 0 {
		t.Fatalf("unexpected location: %+v", e)
	}

	// forward references are fine
	f := &File{Nodes: []Node{
		{Meta: []Meta{{Name: "next", Value: NodeRefs{1}}}},
		{},
	}}
	if _, err := Decode(mustEncode(t, f)); err != nil {
		t.Fatalf("forward reference rejected: %v", err)
	}
}

func nestedMeta(levels int) Meta {
	if levels == 1 {
		return Meta{Name: "leaf", Value: Int64s{1}}
	}
	return Meta{Name: "level", Value: MetaArray{nestedMeta(levels - 1)}}
}

func TestMetadataDepthBound(t *testing.T) {
	testlog.Start(t)
	limit := DefaultLimits().MaxMetaDepth

	ok := &File{Nodes: []Node{{Meta: []Meta{nestedMeta(limit)}}}}
	if _, err := Decode(mustEncode(t, ok)); err != nil {
		t.Fatalf("depth %d rejected: %v", limit, err)
	}

	deep := &File{Nodes: []Node{{Meta: []Meta{nestedMeta(limit + 1)}}}}
	_, err := Encode(deep)
	expectKind(t, err, ErrMetadataTooDeep)

	b, err := NewEncoder(Limits{MaxMetaDepth: 4 * limit}).Encode(deep)
	if err != nil {
		t.Fatalf("encode with raised limit: %v", err)
	}
	_, err = Decode(b)
	e := expectKind(t, err, ErrMetadataTooDeep)
	if len(e.Meta) != limit {
		t.Fatalf("expected meta path of length %d, got %v", limit, e.Meta)
	}
}

func TestMetadataEntryBudget(t *testing.T) {
	testlog.Start(t)
	b := mustEncode(t, sampleFile())
	_, err := NewDecoder(Limits{MaxMetaEntries: 4}).Decode(b)
	expectKind(t, err, ErrMetadataTooDeep)
}

func TestDecodeFileTooLarge(t *testing.T) {
	testlog.Start(t)
	b := mustEncode(t, sampleFile())
	_, err := NewDecoder(Limits{MaxFileBytes: int64(len(b) - 1)}).Decode(b)
	expectKind(t, err, ErrFileTooLarge)

	_, err = Read(bytes.NewReader(b), Limits{MaxFileBytes: 8})
	expectKind(t, err, ErrFileTooLarge)

	f, err := Read(bytes.NewReader(b), DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(f.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(f.Nodes))
	}
}

func TestEncodeRejectsInvalidGraphs(t *testing.T) {
	testlog.Start(t)
	steps := []struct {
		name    string
		mutate  func(f *File)
		want    error
		section Section
		layer   int
	}{
		{
			name: "uv length",
			mutate: func(f *File) {
				g := f.Nodes[0].Content.(*Geometry)
				g.Corners[1].Data = Float64s{0, 0}
			},
			want: ErrLayerLengthMismatch, section: SectionCorner, layer: 1,
		},
		{
			name: "face stack length",
			mutate: func(f *File) {
				g := f.Nodes[0].Content.(*Geometry)
				g.Faces[0].Data = Int32s{0, 1, 2}
			},
			want: ErrLayerLengthMismatch, section: SectionFace, layer: 0,
		},
		{
			name: "pixel length",
			mutate: func(f *File) {
				img := f.Nodes[1].Content.(*Image)
				img.Resolution = [3]uint32{3, 2, 1}
			},
			want: ErrLayerLengthMismatch, section: SectionImage, layer: 0,
		},
		{
			name: "zero components",
			mutate: func(f *File) {
				g := f.Nodes[0].Content.(*Geometry)
				g.Vertices[1].Components = 0
			},
			want: ErrInvalidComponentCount, section: SectionVertex, layer: 1,
		},
		{
			name: "long layer name",
			mutate: func(f *File) {
				g := f.Nodes[0].Content.(*Geometry)
				g.Edges[0].Name = strings.Repeat("e", 256)
			},
			want: ErrNameTooLong, section: SectionEdge, layer: 0,
		},
		{
			name: "vertex layer shape",
			mutate: func(f *File) {
				g := f.Nodes[0].Content.(*Geometry)
				g.Vertices[0].Data = Int32s(make([]int32, 15))
			},
			want: ErrConventionViolation, section: SectionVertex, layer: 0,
		},
		{
			name: "unterminated polygon",
			mutate: func(f *File) {
				g := f.Nodes[0].Content.(*Geometry)
				g.Corners[0].Data = Int32s{0, 1, 2, -4, 1, 4, 3}
			},
			want: ErrConventionViolation, section: SectionCorner, layer: 0,
		},
		{
			name: "dangling ref",
			mutate: func(f *File) {
				f.Nodes[2].Meta[1].Value = NodeRefs{0, 9}
			},
			want: ErrDanglingNodeRef, section: SectionMeta, layer: -1,
		},
		{
			name: "nil meta value",
			mutate: func(f *File) {
				f.Nodes[2].Meta[0].Value.(MetaArray)[2].Value.(MetaArray)[1].Value = nil
			},
			want: ErrUnknownMetaType, section: SectionMeta, layer: -1,
		},
		{
			name: "bad image kind",
			mutate: func(f *File) {
				f.Nodes[3].Content.(*Image).Kind = 9
			},
			want: ErrUnknownImageType, section: SectionImage, layer: -1,
		},
	}
	for _, step := range steps {
		f := sampleFile()
		step.mutate(f)
		_, err := Encode(f)
		if !errors.Is(err, step.want) {
			t.Fatalf("%s: expected %v, got %v", step.name, step.want, err)
		}
		var e *Error
		if !errors.As(err, &e) {
			t.Fatalf("%s: expected *Error, got %T", step.name, err)
		}
		if e.Op != opEncode || e.Section != step.section || e.Layer != step.layer {
			t.Fatalf("%s: unexpected location %+v", step.name, e)
		}
		if err := Validate(f); !errors.Is(err, step.want) {
			t.Fatalf("%s: Validate disagrees with Encode: %v", step.name, err)
		}
	}
}

func TestEncodeNilFile(t *testing.T) {
	testlog.Start(t)
	b, err := Encode(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	f, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.Nodes) != 0 {
		t.Fatalf("expected empty file, got %d nodes", len(f.Nodes))
	}
}

func TestWriteTo(t *testing.T) {
	testlog.Start(t)
	f := sampleFile()
	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != int64(buf.Len()) || !bytes.Equal(buf.Bytes(), mustEncode(t, f)) {
		t.Fatalf("WriteTo output differs from Encode")
	}
}

func TestErrorMessageCarriesLocation(t *testing.T) {
	testlog.Start(t)
	f := sampleFile()
	f.Nodes[0].Content.(*Geometry).Corners[1].Data = Float64s{0}
	_, err := Encode(f)
	msg := err.Error()
	for _, want := range []string{"encode", "node=0", "section=corner", "layer=1", "layer length mismatch"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
	if KindName(err) != "layer_length_mismatch" {
		t.Fatalf("unexpected kind name %q", KindName(err))
	}
	if Kind(errors.New("other")) != nil {
		t.Fatalf("foreign error must not map to a kind")
	}
}

func TestNodeAccessors(t *testing.T) {
	testlog.Start(t)
	f := sampleFile()
	if name, ok := f.Nodes[0].Name(); !ok || name != "quad_and_tri" {
		t.Fatalf("name: got=%q ok=%v", name, ok)
	}
	m, ok := f.Nodes[0].Transform()
	if !ok || m[0] != 1 || m[5] != 1 || m[1] != 0 {
		t.Fatalf("transform: got=%v ok=%v", m, ok)
	}
	if _, ok := f.Nodes[1].Name(); ok {
		t.Fatalf("image node has no name")
	}
	if f.Nodes[0].Type() != NodeGeometry || f.Nodes[1].Type() != NodeImage || f.Nodes[2].Type() != NodeMetaOnly {
		t.Fatalf("unexpected node types")
	}
	g := f.Nodes[0].Content.(*Geometry)
	if g.VertexCount() != 5 || g.CornerCount() != 7 || g.FaceCount() != 2 {
		t.Fatalf("counts: v=%d c=%d f=%d", g.VertexCount(), g.CornerCount(), g.FaceCount())
	}
	if uv, ok := g.Corners.Layer(LayerUV); !ok || uv.Elements() != 7 {
		t.Fatalf("uv lookup failed: %+v", uv)
	}
	cube := f.Nodes[3].Content.(*Image)
	if n, ok := cube.PixelCount(); !ok || n != 6 {
		t.Fatalf("cube pixel count: got=%d ok=%v", n, ok)
	}
}

func rawHeader(nodes uint32) *wire.Writer {
	w := wire.NewWriter(0)
	w.Raw(Magic[:])
	w.U8(FormatVersion)
	w.U32(nodes)
	return w
}
