// Package layout contains the node-collision resolution pass that runs
// after the force layout. It nudges overlapping nodes apart without a full
// physics re-simulation and without disturbing nodes that already sit clear
// of each other.
package layout

// Default dimensions used for nodes that have not been measured yet.
const (
	DefaultNodeWidth  = 160.0
	DefaultNodeHeight = 90.0
)

// Point is a position on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a measured node dimension.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is one diagram node as seen by the resolver. Position is the
// top-left corner of the node's bounding box. Size is nil until the
// renderer has measured the node.
type Node struct {
	ID       string `json:"id"`
	Position Point  `json:"position"`
	Size     *Size  `json:"measured_size,omitempty"`
}

// Options tunes the resolver.
type Options struct {
	// Margin expands every bounding box on all sides before overlap tests,
	// so separated nodes keep visual breathing room.
	Margin float64 `json:"margin"`
	// OverlapThreshold is the per-axis overlap a pair may share before it
	// counts as a collision. Both axes must exceed it.
	OverlapThreshold float64 `json:"overlap_threshold"`
	// MaxIterations bounds the solver loop.
	MaxIterations int `json:"max_iterations"`
}

// DefaultOptions returns the tuning used by the editor.
func DefaultOptions() Options {
	return Options{
		Margin:           16,
		OverlapThreshold: 2,
		MaxIterations:    10,
	}
}

func dims(n *Node) (w, h float64) {
	if n.Size != nil && n.Size.Width > 0 && n.Size.Height > 0 {
		return n.Size.Width, n.Size.Height
	}
	return DefaultNodeWidth, DefaultNodeHeight
}

// Resolve returns a list of the same length and order as nodes with
// positions adjusted so that no two margin-expanded bounding boxes overlap
// beyond the threshold on both axes, as far as the iteration budget allows.
//
// Nodes that never take part in a collision are returned as the identical
// pointers, so callers can skip re-rendering them. Colliding pairs are
// pushed apart along the axis with the smaller overlap; displacements from
// all pairs touching a node accumulate within an iteration before any are
// applied, and pairs are always visited in input order, so the result is
// deterministic and independent of resolution order.
func Resolve(nodes []*Node, opts Options) []*Node {
	n := len(nodes)
	if n < 2 {
		return nodes
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	pos := make([]Point, n)
	widths := make([]float64, n)
	heights := make([]float64, n)
	for i, node := range nodes {
		pos[i] = node.Position
		widths[i], heights[i] = dims(node)
	}

	touched := make([]bool, n)
	disp := make([]Point, n)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		for i := range disp {
			disp[i] = Point{}
		}
		collided := false

		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				// Margin-expanded bounding boxes.
				ax1, ay1 := pos[i].X-opts.Margin, pos[i].Y-opts.Margin
				ax2, ay2 := pos[i].X+widths[i]+opts.Margin, pos[i].Y+heights[i]+opts.Margin
				bx1, by1 := pos[j].X-opts.Margin, pos[j].Y-opts.Margin
				bx2, by2 := pos[j].X+widths[j]+opts.Margin, pos[j].Y+heights[j]+opts.Margin

				overlapX := min(ax2, bx2) - max(ax1, bx1)
				overlapY := min(ay2, by2) - max(ay1, by1)

				// A pair collides only when both axes overlap beyond the
				// threshold; touching on a single axis is fine.
				if overlapX <= opts.OverlapThreshold || overlapY <= opts.OverlapThreshold {
					continue
				}

				collided = true
				touched[i], touched[j] = true, true

				// Separate along the axis needing the least displacement.
				// Ties, including fully coincident boxes, resolve along X
				// with the lower-index node pushed toward negative.
				if overlapX <= overlapY {
					shift := overlapX / 2
					ci := pos[i].X + widths[i]/2
					cj := pos[j].X + widths[j]/2
					if ci > cj {
						shift = -shift
					}
					disp[i].X -= shift
					disp[j].X += shift
				} else {
					shift := overlapY / 2
					ci := pos[i].Y + heights[i]/2
					cj := pos[j].Y + heights[j]/2
					if ci > cj {
						shift = -shift
					}
					disp[i].Y -= shift
					disp[j].Y += shift
				}
			}
		}

		if !collided {
			break
		}
		for i := range pos {
			pos[i].X += disp[i].X
			pos[i].Y += disp[i].Y
		}
	}

	out := make([]*Node, n)
	for i, node := range nodes {
		if !touched[i] {
			out[i] = node
			continue
		}
		out[i] = &Node{ID: node.ID, Position: pos[i], Size: node.Size}
	}
	return out
}
