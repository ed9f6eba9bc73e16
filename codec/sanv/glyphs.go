/*
NAME
  glyphs.go

DESCRIPTION
  glyphs.go builds the fixed pattern tables used by the glyph block code of
  the codec 47 block decoder.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/


package sanv

// Each glyph is generated from an ordered pair of coordinates taken from
// one of the fixed 16-entry vectors below. Most lie on the square's
// perimeter; the last four 4x4 entries are interior points, which classify
// as edgeNone. A line is interpolated
// between the two points and, for every point on the line, a one pixel wide
// stripe is swept to the square's edge. 16x16 ordered pairs give 256 glyphs
// per side length.
const glyphCoords = 16

var (
	glyph4x = [glyphCoords]int8{0, 1, 2, 3, 3, 3, 3, 2, 1, 0, 0, 0, 1, 2, 2, 1}
	glyph4y = [glyphCoords]int8{0, 0, 0, 0, 1, 2, 3, 3, 3, 3, 2, 1, 1, 1, 2, 2}
	glyph8x = [glyphCoords]int8{0, 2, 5, 7, 7, 7, 7, 7, 7, 5, 2, 0, 0, 0, 0, 0}
	glyph8y = [glyphCoords]int8{0, 0, 0, 0, 1, 3, 4, 6, 7, 7, 7, 7, 6, 4, 3, 1}
)

type glyphEdge int

const (
	edgeLeft glyphEdge = iota
	edgeTop
	edgeRight
	edgeBottom
	edgeNone
)

type glyphDir int

const (
	dirLeft glyphDir = iota
	dirUp
	dirRight
	dirDown
	dirNone
)

// whichEdge classifies a perimeter point by the edge of the size x size
// square it lies on. Corner points classify on the top/bottom edge first.
func whichEdge(x, y, size int) glyphEdge {
	switch edgeMax := size - 1; {
	case y == 0:
		return edgeTop
	case y == edgeMax:
		return edgeBottom
	case x == 0:
		return edgeLeft
	case x == edgeMax:
		return edgeRight
	}
	return edgeNone
}

// whichDir derives the stripe sweep direction from the edges the two line
// endpoints lie on. dirUp sweeps rows toward y = 0, dirLeft sweeps columns
// toward x = 0.
func whichDir(e0, e1 glyphEdge) glyphDir {
	switch {
	case (e0 == edgeLeft && e1 == edgeRight) || (e1 == edgeLeft && e0 == edgeRight) ||
		(e0 == edgeTop && e1 != edgeBottom) || (e1 == edgeTop && e0 != edgeBottom):
		return dirUp
	case (e0 == edgeBottom && e1 != edgeTop) || (e1 == edgeBottom && e0 != edgeTop):
		return dirDown
	case (e0 == edgeLeft && e1 != edgeRight) || (e1 == edgeLeft && e0 != edgeRight):
		return dirLeft
	case (e0 == edgeRight && e1 != edgeLeft) || (e1 == edgeRight && e0 != edgeLeft):
		return dirRight
	}
	return dirNone
}

// interpPoint returns the pos-th of n+1 integer points on the line from
// (x1,y1) to (x0,y0), rounding with a half step bias before division.
func interpPoint(x0, y0, x1, y1, pos, n int) (x, y int) {
	if n == 0 {
		return x0, y0
	}
	x = (x0*pos + x1*(n-pos) + n/2) / n
	y = (y0*pos + y1*(n-pos) + n/2) / n
	return x, y
}

// makeGlyphs generates the 256 glyph masks for the given side length. The
// result holds side*side bytes per glyph, each 0 or 1.
func makeGlyphs(xv, yv *[glyphCoords]int8, side int) []byte {
	area := side * side
	tbl := make([]byte, glyphCoords*glyphCoords*area)

	g := 0
	for i := 0; i < glyphCoords; i++ {
		x0, y0 := int(xv[i]), int(yv[i])
		e0 := whichEdge(x0, y0, side)

		for j := 0; j < glyphCoords; j++ {
			glyph := tbl[g : g+area]
			g += area

			x1, y1 := int(xv[j]), int(yv[j])
			e1 := whichEdge(x1, y1, side)
			dir := whichDir(e0, e1)

			n := abs(x1 - x0)
			if dy := abs(y1 - y0); dy > n {
				n = dy
			}

			for p := 0; p <= n; p++ {
				x, y := interpPoint(x0, y0, x1, y1, p, n)
				switch dir {
				case dirUp:
					for r := y; r >= 0; r-- {
						glyph[x+r*side] = 1
					}
				case dirDown:
					for r := y; r < side; r++ {
						glyph[x+r*side] = 1
					}
				case dirLeft:
					for c := x; c >= 0; c-- {
						glyph[c+y*side] = 1
					}
				case dirRight:
					for c := x; c < side; c++ {
						glyph[c+y*side] = 1
					}
				}
			}
		}
	}
	return tbl
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
