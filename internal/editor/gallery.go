package editor

import "math"

// GalleryScroll redirects a wheel event into horizontal scroll of the
// photo gallery. The dominant axis wins: whichever of deltaX/deltaY has
// the larger magnitude becomes the horizontal scroll amount. handled
// reports whether the event should be consumed; a zero delta is left to
// the default behavior.
func GalleryScroll(deltaX, deltaY float64) (scrollBy float64, handled bool) {
	if deltaX == 0 && deltaY == 0 {
		return 0, false
	}
	if math.Abs(deltaX) >= math.Abs(deltaY) {
		return deltaX, true
	}
	return deltaY, true
}
