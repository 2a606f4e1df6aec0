package element

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D elements (points)
	D1                       // 1D elements (lines, edges)
	D2                       // 2D elements (quadrilaterals)
)

type ElementGeometry uint8

const (
	Quad ElementGeometry = iota
	Line
)

func (g ElementGeometry) String() string {
	switch g {
	case Quad:
		return "Quad"
	case Line:
		return "Line"
	default:
		return "Unknown"
	}
}

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name         string          // Full descriptive name (e.g., "Bilinear Plane Stress Quadrilateral")
	ShortName    string          // Abbreviated name (e.g., "Q4")
	Type         ElementGeometry // Element shape
	NVp          int             // Number of vertex nodes
	DofsPerNode  int             // Displacement components carried by each node
	NumDofs      int             // NVp * DofsPerNode
	NEdges       int             // Number of edges in each element
	Dimensions   Dimensionality  // Spatial dimension
	Width        float64         // Physical edge length along x
	Height       float64         // Physical edge length along y
	Thickness    float64         // Out-of-plane thickness for plane stress
	LocalNodeXYs [][2]float64    // Node coordinates in element-local space
}

// Volume is the element volume used to turn energies into energy densities.
func (p ElementProperties) Volume() float64 {
	return p.Width * p.Height * p.Thickness
}

// ReferenceElement defines element properties and the material-dependent
// stiffness operator of one element type.
type ReferenceElement interface {
	GetProperties() ElementProperties

	// Stiffness returns the element stiffness for Young's modulus E and
	// Poisson ratio nu, in the element's local DOF order.
	Stiffness(E, nu float64) Stiffness
}
