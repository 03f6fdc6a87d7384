package render

import (
	"sync"
	"sync/atomic"
)

// BuildContext is the build-scoped state shared by every render of one build.
// It records conditions that were already reported so each is warned about
// once, and counts where artifacts came from.
type BuildContext struct {
	warned sync.Map

	rendered   atomic.Int64
	diskHits   atomic.Int64
	mirrorHits atomic.Int64
}

// NewBuildContext creates an empty build context.
func NewBuildContext() *BuildContext {
	return &BuildContext{}
}

// WarnOnce reports whether key is seen for the first time, marking it warned.
func (bc *BuildContext) WarnOnce(key string) bool {
	_, loaded := bc.warned.LoadOrStore(key, struct{}{})
	return !loaded
}

// Warned reports whether key was already warned about.
func (bc *BuildContext) Warned(key string) bool {
	_, ok := bc.warned.Load(key)
	return ok
}

// Stats is a snapshot of artifact origins.
type Stats struct {
	Rendered   int64
	DiskHits   int64
	MirrorHits int64
}

// Stats returns the counters accumulated so far.
func (bc *BuildContext) Stats() Stats {
	return Stats{
		Rendered:   bc.rendered.Load(),
		DiskHits:   bc.diskHits.Load(),
		MirrorHits: bc.mirrorHits.Load(),
	}
}

func (bc *BuildContext) record(o Origin) {
	switch o {
	case OriginRender:
		bc.rendered.Add(1)
	case OriginDisk:
		bc.diskHits.Add(1)
	case OriginMirror:
		bc.mirrorHits.Add(1)
	}
}
