package hxa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/hxa/internal/hxa/wire"
)

var (
	ErrTruncatedInput        = wire.ErrTruncated
	ErrNameTooLong           = wire.ErrNameTooLong
	ErrInvalidMagic          = errors.New("hxa: invalid magic")
	ErrUnsupportedVersion    = errors.New("hxa: unsupported version")
	ErrUnknownNodeType       = errors.New("hxa: unknown node type")
	ErrUnknownMetaType       = errors.New("hxa: unknown meta type")
	ErrUnknownLayerType      = errors.New("hxa: unknown layer type")
	ErrUnknownImageType      = errors.New("hxa: unknown image type")
	ErrInvalidComponentCount = errors.New("hxa: invalid component count")
	ErrLayerLengthMismatch   = errors.New("hxa: layer length mismatch")
	ErrFaceCountMismatch     = errors.New("hxa: face count mismatch")
	ErrConventionViolation   = errors.New("hxa: convention violation")
	ErrMetadataTooDeep       = errors.New("hxa: metadata too deep")
	ErrDanglingNodeRef       = errors.New("hxa: node reference out of range")
	ErrFileTooLarge          = errors.New("hxa: file too large")
)

// Kinds lists every sentinel a codec error can unwrap to, in taxonomy order.
var Kinds = []error{
	ErrTruncatedInput,
	ErrNameTooLong,
	ErrInvalidMagic,
	ErrUnsupportedVersion,
	ErrUnknownNodeType,
	ErrUnknownMetaType,
	ErrUnknownLayerType,
	ErrUnknownImageType,
	ErrInvalidComponentCount,
	ErrLayerLengthMismatch,
	ErrFaceCountMismatch,
	ErrConventionViolation,
	ErrMetadataTooDeep,
	ErrDanglingNodeRef,
	ErrFileTooLarge,
}

// Section names the part of a node an error was raised in.
type Section string

const (
	SectionHeader Section = "header"
	SectionMeta   Section = "meta"
	SectionVertex Section = "vertex"
	SectionCorner Section = "corner"
	SectionEdge   Section = "edge"
	SectionFace   Section = "face"
	SectionImage  Section = "image"
)

// Error is a located codec failure. Node and Layer are -1 when not
// applicable; Meta is the index path into nested metadata.
type Error struct {
	Op      string
	Node    int
	Section Section
	Layer   int
	Meta    []int
	Offset  int
	Err     error
	Detail  string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("hxa: ")
	b.WriteString(e.Op)
	if e.Node >= 0 {
		fmt.Fprintf(&b, " node=%d", e.Node)
	}
	if e.Section != "" {
		fmt.Fprintf(&b, " section=%s", e.Section)
	}
	if e.Layer >= 0 {
		fmt.Fprintf(&b, " layer=%d", e.Layer)
	}
	if len(e.Meta) > 0 {
		parts := make([]string, len(e.Meta))
		for i, m := range e.Meta {
			parts[i] = fmt.Sprint(m)
		}
		fmt.Fprintf(&b, " meta=%s", strings.Join(parts, "/"))
	}
	if e.Op == opDecode {
		fmt.Fprintf(&b, " offset=%d", e.Offset)
	}
	b.WriteString(": ")
	b.WriteString(strings.TrimPrefix(strings.TrimPrefix(e.Err.Error(), "hxa: "), "wire: "))
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Kind returns the taxonomy sentinel err unwraps to, or nil.
func Kind(err error) error {
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is a short label for the error kind, e.g. "truncated_input".
func KindName(err error) string {
	switch Kind(err) {
	case ErrTruncatedInput:
		return "truncated_input"
	case ErrNameTooLong:
		return "name_too_long"
	case ErrInvalidMagic:
		return "invalid_magic"
	case ErrUnsupportedVersion:
		return "unsupported_version"
	case ErrUnknownNodeType:
		return "unknown_node_type"
	case ErrUnknownMetaType:
		return "unknown_meta_type"
	case ErrUnknownLayerType:
		return "unknown_layer_type"
	case ErrUnknownImageType:
		return "unknown_image_type"
	case ErrInvalidComponentCount:
		return "invalid_component_count"
	case ErrLayerLengthMismatch:
		return "layer_length_mismatch"
	case ErrFaceCountMismatch:
		return "face_count_mismatch"
	case ErrConventionViolation:
		return "convention_violation"
	case ErrMetadataTooDeep:
		return "metadata_too_deep"
	case ErrDanglingNodeRef:
		return "dangling_node_ref"
	case ErrFileTooLarge:
		return "file_too_large"
	default:
		return "unknown"
	}
}

// location tracks where the codec currently is so failures can be reported
// against the node, section, layer and metadata path being processed.
type location struct {
	node    int
	section Section
	layer   int
	meta    []int
}

func newLocation() location {
	return location{node: -1, layer: -1}
}

func (l *location) errorf(op string, offset int, err error, format string, args ...any) *Error {
	e := &Error{
		Op:      op,
		Node:    l.node,
		Section: l.section,
		Layer:   l.layer,
		Offset:  offset,
		Err:     err,
	}
	if len(l.meta) > 0 {
		e.Meta = append([]int(nil), l.meta...)
	}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}
