package hxa

// Hard conventions. Layer 0 of the vertex stack is the position layer and
// layer 0 of the corner stack is the reference layer; the codec enforces both.
const (
	VertexLayerName       = "vertex"
	VertexLayerAlias      = "position"
	VertexLayerComponents = 3
	CornerLayerName       = "reference"
	CornerLayerAlias      = "index"
	CornerLayerComponents = 1
	EdgeNeighbourLayer    = "neighbour"
)

// Soft conventions. Advisory names shared between tools; never enforced.
const (
	LayerSequence         = "sequence"
	LayerUV               = "uv"
	LayerNormal           = "normal"
	LayerBinormal         = "binormal"
	LayerTangent          = "tangent"
	LayerColor            = "color"
	LayerCreases          = "creases"
	LayerSelection        = "select"
	LayerSkinWeight       = "skining_weight"
	LayerSkinReference    = "skining_reference"
	LayerBlendshape       = "blendshape"
	LayerAddBlendshape    = "addblendshape"
	LayerMaterialID       = "material"
	LayerGroupID          = "group"
	ImageAlbedo           = "albedo"
	ImageLight            = "light"
	ImageDisplacement     = "displacement"
	ImageDistortion       = "distortion"
	ImageAmbientOcclusion = "ambient_occlusion"
	MetaName              = "name"
	MetaTransform         = "transform"
)

var softConventions = map[string]struct{}{
	LayerSequence:         {},
	LayerUV:               {},
	LayerNormal:           {},
	LayerBinormal:         {},
	LayerTangent:          {},
	LayerColor:            {},
	LayerCreases:          {},
	LayerSelection:        {},
	LayerSkinWeight:       {},
	LayerSkinReference:    {},
	LayerBlendshape:       {},
	LayerAddBlendshape:    {},
	LayerMaterialID:       {},
	LayerGroupID:          {},
	ImageAlbedo:           {},
	ImageLight:            {},
	ImageDisplacement:     {},
	ImageDistortion:       {},
	ImageAmbientOcclusion: {},
	MetaName:              {},
	MetaTransform:         {},
}

// IsSoftConvention reports whether name is in the advisory catalog.
func IsSoftConvention(name string) bool {
	_, ok := softConventions[name]
	return ok
}

// IsHardConvention reports whether name is reserved for a base layer.
func IsHardConvention(name string) bool {
	switch name {
	case VertexLayerName, VertexLayerAlias, CornerLayerName, CornerLayerAlias, EdgeNeighbourLayer:
		return true
	}
	return false
}

func checkVertexLayer(l Layer) string {
	if l.Name != VertexLayerName && l.Name != VertexLayerAlias {
		return "vertex layer 0 must be named " + VertexLayerName
	}
	if l.Components != VertexLayerComponents {
		return "vertex layer 0 must have 3 components"
	}
	if t := l.Data.LayerType(); t != LayerFloat32 && t != LayerFloat64 {
		return "vertex layer 0 must be floating point"
	}
	return ""
}

func checkCornerLayer(l Layer) string {
	if l.Name != CornerLayerName && l.Name != CornerLayerAlias {
		return "corner layer 0 must be named " + CornerLayerName
	}
	if l.Components != CornerLayerComponents {
		return "corner layer 0 must have 1 component"
	}
	if l.Data.LayerType() != LayerInt32 {
		return "corner layer 0 must be int32"
	}
	return ""
}

// Name returns the node's soft-convention "name" text, if present.
func (n Node) Name() (string, bool) {
	m, ok := n.MetaByName(MetaName)
	if !ok {
		return "", false
	}
	t, ok := m.Value.(Text)
	return string(t), ok
}

// Transform returns the node's soft-convention "transform" matrix: 16 doubles
// in stored order.
func (n Node) Transform() ([16]float64, bool) {
	var out [16]float64
	m, ok := n.MetaByName(MetaTransform)
	if !ok {
		return out, false
	}
	d, ok := m.Value.(Doubles)
	if !ok || len(d) != len(out) {
		return out, false
	}
	copy(out[:], d)
	return out, true
}
