package graph

// RootID is the identifier given to graphs built by the projector.
const RootID = "root"

// Node kinds assigned by the projector and used for styling.
const (
	KindService  = "service"
	KindGateway  = "gateway"
	KindDatabase = "database"
)

// =============================================================================
// Graph
// =============================================================================

// Graph is a tree of nodes plus a flat list of edges between them.
// Width and Height are set by the layout engine.
type Graph struct {
	ID       string  `json:"id"`
	Children []Node  `json:"children"`
	Edges    []Edge  `json:"edges"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
}

// =============================================================================
// Node
// =============================================================================

// Node is a box in the diagram. Children are drawn inside it.
type Node struct {
	ID          string  `json:"id"`
	Label       string  `json:"label,omitempty"` // Display label (defaults to ID)
	Subtitle    string  `json:"subtitle,omitempty"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"` // Image URL
	Kind        string  `json:"kind,omitempty"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
	Children    []Node  `json:"children,omitempty"`
}

// DisplayLabel returns the label, falling back to the node ID.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// HasChildren reports whether the node contains nested nodes.
func (n Node) HasChildren() bool { return len(n.Children) > 0 }

// =============================================================================
// Edge
// =============================================================================

// Edge connects source nodes to target nodes. Projected edges always have
// exactly one source and one target; Sections are filled in by layout.
type Edge struct {
	ID          string    `json:"id"`
	Sources     []string  `json:"sources"`
	Targets     []string  `json:"targets"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections,omitempty"`
}

// Source returns the first source ID, or "" if there is none.
func (e Edge) Source() string {
	if len(e.Sources) == 0 {
		return ""
	}
	return e.Sources[0]
}

// Target returns the first target ID, or "" if there is none.
func (e Edge) Target() string {
	if len(e.Targets) == 0 {
		return ""
	}
	return e.Targets[0]
}

// Section is one routed piece of an edge: a start point, optional bend
// points and an end point.
type Section struct {
	ID         string  `json:"id,omitempty"`
	StartPoint Point   `json:"startPoint"`
	BendPoints []Point `json:"bendPoints,omitempty"`
	EndPoint   Point   `json:"endPoint"`
}

// Points returns start, bends and end in drawing order.
func (s Section) Points() []Point {
	pts := make([]Point, 0, len(s.BendPoints)+2)
	pts = append(pts, s.StartPoint)
	pts = append(pts, s.BendPoints...)
	return append(pts, s.EndPoint)
}

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
