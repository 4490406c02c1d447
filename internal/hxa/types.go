package hxa

import "fmt"

// FormatVersion is the only version byte this codec reads or writes.
const FormatVersion uint8 = 3

// Magic is the file identifier. Encoders write all four bytes; decoders also
// accept the three byte form without the trailing NUL.
var Magic = [4]byte{'H', 'x', 'A', 0}

// NodeType is the on-wire node tag.
type NodeType uint8

const (
	NodeMetaOnly NodeType = 0
	NodeGeometry NodeType = 1
	NodeImage    NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case NodeMetaOnly:
		return "meta_only"
	case NodeGeometry:
		return "geometry"
	case NodeImage:
		return "image"
	default:
		return fmt.Sprintf("node_type(%d)", uint8(t))
	}
}

// ImageKind is the on-wire image tag.
type ImageKind uint8

const (
	ImageCube ImageKind = 0
	Image1D   ImageKind = 1
	Image2D   ImageKind = 2
	Image3D   ImageKind = 3
)

func (k ImageKind) String() string {
	switch k {
	case ImageCube:
		return "cube"
	case Image1D:
		return "1d"
	case Image2D:
		return "2d"
	case Image3D:
		return "3d"
	default:
		return fmt.Sprintf("image_kind(%d)", uint8(k))
	}
}

// LayerType is the on-wire element type of a layer.
type LayerType uint8

const (
	LayerUint8   LayerType = 0
	LayerInt32   LayerType = 1
	LayerFloat32 LayerType = 2
	LayerFloat64 LayerType = 3
)

// Size is the width in bytes of one value.
func (t LayerType) Size() int {
	switch t {
	case LayerUint8:
		return 1
	case LayerInt32, LayerFloat32:
		return 4
	case LayerFloat64:
		return 8
	default:
		return 0
	}
}

func (t LayerType) String() string {
	switch t {
	case LayerUint8:
		return "uint8"
	case LayerInt32:
		return "int32"
	case LayerFloat32:
		return "float32"
	case LayerFloat64:
		return "float64"
	default:
		return fmt.Sprintf("layer_type(%d)", uint8(t))
	}
}

// MetaType is the on-wire metadata tag.
type MetaType uint8

const (
	MetaInt64  MetaType = 0
	MetaDouble MetaType = 1
	MetaNode   MetaType = 2
	MetaText   MetaType = 3
	MetaBinary MetaType = 4
	MetaArr    MetaType = 5
)

func (t MetaType) String() string {
	switch t {
	case MetaInt64:
		return "int64"
	case MetaDouble:
		return "double"
	case MetaNode:
		return "node"
	case MetaText:
		return "text"
	case MetaBinary:
		return "binary"
	case MetaArr:
		return "meta"
	default:
		return fmt.Sprintf("meta_type(%d)", uint8(t))
	}
}

// File is a decoded HxA file. Node identity is the index in Nodes.
type File struct {
	Nodes []Node
}

// Node is one top-level record. Content is nil for metadata-only nodes.
type Node struct {
	Meta    []Meta
	Content Content
}

// Type derives the wire tag from the content variant.
func (n Node) Type() NodeType {
	if n.Content == nil {
		return NodeMetaOnly
	}
	return n.Content.NodeType()
}

// MetaByName returns the first top-level metadata entry with the given name.
func (n Node) MetaByName(name string) (Meta, bool) {
	for _, m := range n.Meta {
		if m.Name == name {
			return m, true
		}
	}
	return Meta{}, false
}

// Content is the type-specific payload of a node: *Geometry or *Image.
type Content interface {
	NodeType() NodeType
	isContent()
}

// Geometry is polygon mesh content. Element counts are derived from the
// stacks: the vertex count from the position layer, the corner count from the
// reference layer, the face count from the polygon terminators.
type Geometry struct {
	Vertices LayerStack
	Corners  LayerStack
	Edges    LayerStack
	Faces    LayerStack
}

func (*Geometry) NodeType() NodeType { return NodeGeometry }
func (*Geometry) isContent()         {}

// VertexCount is the element count of the position layer.
func (g *Geometry) VertexCount() int {
	if len(g.Vertices) == 0 {
		return 0
	}
	return g.Vertices[0].Elements()
}

// CornerCount is the element count of the reference layer.
func (g *Geometry) CornerCount() int {
	if len(g.Corners) == 0 {
		return 0
	}
	return g.Corners[0].Elements()
}

// FaceCount is the number of polygon terminators in the reference layer.
func (g *Geometry) FaceCount() int {
	if len(g.Corners) == 0 {
		return 0
	}
	idx, ok := g.Corners[0].Data.(Int32s)
	if !ok {
		return 0
	}
	return countTerminators(idx)
}

// Image is pixel content.
type Image struct {
	Kind       ImageKind
	Resolution [3]uint32
	Pixels     LayerStack
}

func (*Image) NodeType() NodeType { return NodeImage }
func (*Image) isContent()         {}

// PixelCount is the element count every pixel layer must hold. ok is false
// if the product does not fit in an int.
func (img *Image) PixelCount() (n int, ok bool) {
	return pixelCount(img.Kind, img.Resolution)
}

func pixelCount(kind ImageKind, res [3]uint32) (int, bool) {
	const maxInt = int(^uint(0) >> 1)
	n := uint64(1)
	for _, d := range res {
		if d == 0 {
			return 0, true
		}
		if n > uint64(maxInt)/uint64(d) {
			return 0, false
		}
		n *= uint64(d)
	}
	if kind == ImageCube {
		if n > uint64(maxInt)/6 {
			return 0, false
		}
		n *= 6
	}
	return int(n), true
}

// Meta is one named metadata entry.
type Meta struct {
	Name  string
	Value MetaValue
}

// MetaValue is the closed set of metadata payloads.
type MetaValue interface {
	MetaType() MetaType
	// Len is the on-wire array_length.
	Len() int
	isMetaValue()
}

type (
	Int64s    []int64
	Doubles   []float64
	NodeRefs  []uint32
	Text      string
	Binary    []byte
	MetaArray []Meta
)

func (Int64s) MetaType() MetaType    { return MetaInt64 }
func (Doubles) MetaType() MetaType   { return MetaDouble }
func (NodeRefs) MetaType() MetaType  { return MetaNode }
func (Text) MetaType() MetaType      { return MetaText }
func (Binary) MetaType() MetaType    { return MetaBinary }
func (MetaArray) MetaType() MetaType { return MetaArr }

func (v Int64s) Len() int    { return len(v) }
func (v Doubles) Len() int   { return len(v) }
func (v NodeRefs) Len() int  { return len(v) }
func (v Text) Len() int      { return len(v) }
func (v Binary) Len() int    { return len(v) }
func (v MetaArray) Len() int { return len(v) }

func (Int64s) isMetaValue()    {}
func (Doubles) isMetaValue()   {}
func (NodeRefs) isMetaValue()  {}
func (Text) isMetaValue()      {}
func (Binary) isMetaValue()    {}
func (MetaArray) isMetaValue() {}

// LayerStack is an ordered set of layers sharing one element count. Layers
// are addressed by name.
type LayerStack []Layer

// Layer returns the first layer with the given name.
func (s LayerStack) Layer(name string) (Layer, bool) {
	for _, l := range s {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// Layer is one named, typed property array. Data holds
// elements × Components values.
type Layer struct {
	Name       string
	Components uint8
	Data       LayerData
}

// Elements is the number of elements the layer describes.
func (l Layer) Elements() int {
	if l.Components == 0 || l.Data == nil {
		return 0
	}
	return l.Data.Len() / int(l.Components)
}

// LayerData is the closed set of layer buffers.
type LayerData interface {
	LayerType() LayerType
	// Len is the number of scalar values, not elements.
	Len() int
	isLayerData()
}

type (
	Uint8s   []uint8
	Int32s   []int32
	Float32s []float32
	Float64s []float64
)

func (Uint8s) LayerType() LayerType   { return LayerUint8 }
func (Int32s) LayerType() LayerType   { return LayerInt32 }
func (Float32s) LayerType() LayerType { return LayerFloat32 }
func (Float64s) LayerType() LayerType { return LayerFloat64 }

func (v Uint8s) Len() int   { return len(v) }
func (v Int32s) Len() int   { return len(v) }
func (v Float32s) Len() int { return len(v) }
func (v Float64s) Len() int { return len(v) }

func (Uint8s) isLayerData()   {}
func (Int32s) isLayerData()   {}
func (Float32s) isLayerData() {}
func (Float64s) isLayerData() {}
