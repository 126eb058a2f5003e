package langserver

import (
	"sync"

	"github.com/sourcegraph/ctxvfs"
)

// HandlerShared contains the file system state of a handler: the files the
// client has open, overlaid on the underlying file system.
type HandlerShared struct {
	Mu sync.Mutex // guards all fields
	FS *AtomicFS  // full filesystem (mounts both the base and the overlay)

	// BaseFS, if non-nil, is mounted beneath the overlay instead of the OS
	// file system.
	BaseFS ctxvfs.FileSystem

	overlay *overlay // files to overlay
}

// Reset replaces the file system. With useOSFS the OS file system (or
// BaseFS when set) backs the overlay.
func (h *HandlerShared) Reset(useOSFS bool) error {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	h.overlay = newOverlay()
	h.FS = NewAtomicFS()

	if useOSFS {
		// The overlay FS takes precedence, but we fall back to the OS
		// file system.
		base := h.BaseFS
		if base == nil {
			base = ctxvfs.OS("/")
		}
		h.FS.Bind("/", base, "/", ctxvfs.BindAfter)
	}
	h.FS.Bind("/", h.overlay.FS(), "/", ctxvfs.BindBefore)
	return nil
}
