package tracking

// Speed converts a pixel displacement over elapsedSeconds into the display
// unit. factor converts feet per second to that unit (0.681818 for mph).
// A non-positive elapsed time yields 0 rather than a division error.
func Speed(displacementPx, feetPerPixel, elapsedSeconds, factor float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return (displacementPx * feetPerPixel / elapsedSeconds) * factor
}

// ShouldCapture reports whether the leading edge of box has come within
// margin pixels of the zone boundary it is travelling towards.
func ShouldCapture(box BoundingBox, dir Direction, zoneWidth, margin int) bool {
	switch dir {
	case RightToLeft:
		return box.X <= margin
	case LeftToRight:
		return box.Right() >= zoneWidth-margin
	default:
		return false
	}
}
