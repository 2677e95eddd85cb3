package geom

import (
	"errors"
	"math"
)

// ErrDegeneratePolyline is returned by operations that require at least
// two vertices (projection, cutting) when given fewer.
var ErrDegeneratePolyline = errors.New("polyline needs at least two vertices")

// Point is a position in a projected coordinate frame. Units are meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Less orders points lexicographically by (X, Y). It is the canonical
// ordering used everywhere a deterministic point order is needed.
func (p Point) Less(q Point) bool {
	if p.X != q.X {
		return p.X < q.X
	}
	return p.Y < q.Y
}

// Polyline is an ordered sequence of vertices. A valid polyline has at
// least two vertices; single-vertex or empty polylines are degenerate.
type Polyline []Point

// First returns the first vertex. Panics on an empty polyline.
func (pl Polyline) First() Point { return pl[0] }

// Last returns the last vertex. Panics on an empty polyline.
func (pl Polyline) Last() Point { return pl[len(pl)-1] }

// Length returns the arclength of the polyline in meters.
// Degenerate polylines have length 0.
func (pl Polyline) Length() float64 {
	var total float64
	for i := 1; i < len(pl); i++ {
		total += pl[i-1].Dist(pl[i])
	}
	return total
}

// Clone returns a deep copy of the polyline.
func (pl Polyline) Clone() Polyline {
	out := make(Polyline, len(pl))
	copy(out, pl)
	return out
}

// Reverse returns a copy of the polyline with vertex order inverted.
func (pl Polyline) Reverse() Polyline {
	out := make(Polyline, len(pl))
	for i, p := range pl {
		out[len(pl)-1-i] = p
	}
	return out
}

// Projection describes the nearest point on a polyline to a query point.
type Projection struct {
	Point Point   // closest point on the polyline
	Dist  float64 // Euclidean distance from the query point
	Along float64 // arclength position of Point, measured from the first vertex
}

// projectOnSegment returns the closest point to p on segment a-b and the
// clamped interpolation parameter t in [0,1].
func projectOnSegment(p, a, b Point) (Point, float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	den := dx*dx + dy*dy
	if den == 0 {
		return a, 0
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / den
	t = math.Max(0, math.Min(1, t))
	return Point{X: a.X + t*dx, Y: a.Y + t*dy}, t
}

// Nearest projects p onto the polyline and returns the closest point,
// its distance and its arclength position. When two segments are exactly
// equidistant the earlier segment wins, so results are deterministic.
func (pl Polyline) Nearest(p Point) (Projection, error) {
	if len(pl) < 2 {
		return Projection{}, ErrDegeneratePolyline
	}
	best := Projection{Dist: math.Inf(1)}
	var walked float64
	for i := 1; i < len(pl); i++ {
		a, b := pl[i-1], pl[i]
		q, t := projectOnSegment(p, a, b)
		if d := p.Dist(q); d < best.Dist {
			best = Projection{Point: q, Dist: d, Along: walked + t*a.Dist(b)}
		}
		walked += a.Dist(b)
	}
	return best, nil
}

// At returns the point at arclength position along, clamped to the
// polyline's extent.
func (pl Polyline) At(along float64) (Point, error) {
	if len(pl) < 2 {
		return Point{}, ErrDegeneratePolyline
	}
	if along <= 0 {
		return pl[0], nil
	}
	var walked float64
	for i := 1; i < len(pl); i++ {
		seg := pl[i-1].Dist(pl[i])
		if walked+seg >= along && seg > 0 {
			t := (along - walked) / seg
			a, b := pl[i-1], pl[i]
			return Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}, nil
		}
		walked += seg
	}
	return pl[len(pl)-1], nil
}

// Cut extracts the sub-polyline between arclength positions from and to,
// interpolating new endpoints inside segments where necessary. The input
// curvature is preserved: every original vertex strictly between the two
// positions is kept. Positions are clamped to [0, Length]; from must not
// exceed to.
func (pl Polyline) Cut(from, to float64) (Polyline, error) {
	if len(pl) < 2 {
		return nil, ErrDegeneratePolyline
	}
	if from > to {
		from, to = to, from
	}
	total := pl.Length()
	from = math.Max(0, from)
	to = math.Min(total, to)

	start, err := pl.At(from)
	if err != nil {
		return nil, err
	}
	end, err := pl.At(to)
	if err != nil {
		return nil, err
	}

	out := Polyline{start}
	var walked float64
	for i := 1; i < len(pl)-1; i++ {
		walked += pl[i-1].Dist(pl[i])
		if walked > from && walked < to {
			out = append(out, pl[i])
		}
	}
	out = append(out, end)
	return out, nil
}

// Round rounds v to the given number of decimals (half away from zero).
func Round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

// RoundPoint rounds both coordinates of p to the given number of decimals.
func RoundPoint(p Point, decimals int) Point {
	return Point{X: Round(p.X, decimals), Y: Round(p.Y, decimals)}
}

// Centroid returns the (optionally weighted) centroid of pts. Weights may
// be nil for an unweighted centroid; non-positive weights count as zero.
// If all weights are zero the unweighted centroid is returned.
func Centroid(pts []Point, weights []float64) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy, sw float64
	for i, p := range pts {
		w := 1.0
		if weights != nil {
			w = math.Max(0, weights[i])
		}
		sx += p.X * w
		sy += p.Y * w
		sw += w
	}
	if sw == 0 {
		return Centroid(pts, nil)
	}
	return Point{X: sx / sw, Y: sy / sw}
}

// NearestIndex returns the index of the point in pts closest to q.
// Ties keep the earlier index. Returns -1 for an empty slice.
func NearestIndex(pts []Point, q Point) int {
	best, bestDist := -1, math.Inf(1)
	for i, p := range pts {
		if d := p.Dist(q); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// NewBBox returns the bounding box of pts, expanded by buffer on all sides.
func NewBBox(pts []Point, buffer float64) BBox {
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range pts {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	b.MinX -= buffer
	b.MinY -= buffer
	b.MaxX += buffer
	b.MaxY += buffer
	return b
}

// Contains reports whether p lies inside the box (inclusive).
func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Intersects reports whether the two boxes overlap (inclusive).
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}
