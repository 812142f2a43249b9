package descriptions

import (
	"image-library/internal/events"
	"image-library/internal/logging"
)

// Follow keeps the index in step with files renamed through bus. It returns
// a function that stops following.
func (x *Index) Follow(bus *events.Bus) (stop func()) {
	return bus.Subscribe(func(e events.Event) {
		if e.Type != events.ImageRenamed || e.OldPath == "" {
			return
		}
		if x.Rename(e.OldPath, e.Path) {
			logging.Debug("Moved description of %s to %s", e.OldPath, e.Path)
		}
	})
}
