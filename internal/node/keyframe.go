package node

// Keyframe pins a node's transform at a local time.
type Keyframe struct {
	Time  float64
	X, Y  float64
	Zoom  float64
	Alpha float64
}

// Transform is the interpolated state between keyframes.
type Transform struct {
	X, Y  float64
	Zoom  float64
	Alpha float64
}

// Identity transform: no offset, no zoom, opaque.
var identityTransform = Transform{Zoom: 1, Alpha: 1}

// Interpolate returns the transform at local time t. Keyframes must be
// sorted by time. Before the first and after the last keyframe the end
// values hold.
func Interpolate(keyframes []Keyframe, t float64) Transform {
	if len(keyframes) == 0 {
		return identityTransform
	}
	if t <= keyframes[0].Time {
		return keyframes[0].transform()
	}
	last := keyframes[len(keyframes)-1]
	if t >= last.Time {
		return last.transform()
	}

	var prev, next Keyframe
	for i := 0; i < len(keyframes)-1; i++ {
		if t >= keyframes[i].Time && t < keyframes[i+1].Time {
			prev, next = keyframes[i], keyframes[i+1]
			break
		}
	}

	span := next.Time - prev.Time
	if span == 0 {
		span = 0.001
	}
	k := easeInOutCubic((t - prev.Time) / span)

	a, b := prev.transform(), next.transform()
	return Transform{
		X:     lerp(a.X, b.X, k),
		Y:     lerp(a.Y, b.Y, k),
		Zoom:  lerp(a.Zoom, b.Zoom, k),
		Alpha: lerp(a.Alpha, b.Alpha, k),
	}
}

// transform fills in the defaults for zero zoom and alpha. A keyframe that
// wants a fully transparent node uses a negative alpha.
func (k Keyframe) transform() Transform {
	tr := Transform{X: k.X, Y: k.Y, Zoom: k.Zoom, Alpha: k.Alpha}
	if tr.Zoom == 0 {
		tr.Zoom = 1
	}
	switch {
	case tr.Alpha == 0:
		tr.Alpha = 1
	case tr.Alpha < 0:
		tr.Alpha = 0
	}
	return tr
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}
