package hxa

// Limits constrains decode memory and recursion. Zero fields fall back to
// DefaultLimits.
type Limits struct {
	// MaxFileBytes bounds the input accepted by ReadFrom and the HTTP service.
	MaxFileBytes int64
	// MaxMetaDepth bounds metadata nesting. Top-level entries are depth 1.
	MaxMetaDepth int
	// MaxMetaEntries bounds the number of metadata entries in one file,
	// nested entries included.
	MaxMetaEntries int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:   256 * 1024 * 1024,
		MaxMetaDepth:   32,
		MaxMetaEntries: 1 << 20,
	}
}

func (l Limits) normalize() Limits {
	def := DefaultLimits()
	if l.MaxFileBytes <= 0 {
		l.MaxFileBytes = def.MaxFileBytes
	}
	if l.MaxMetaDepth <= 0 {
		l.MaxMetaDepth = def.MaxMetaDepth
	}
	if l.MaxMetaEntries <= 0 {
		l.MaxMetaEntries = def.MaxMetaEntries
	}
	return l
}
