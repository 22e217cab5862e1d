package element

import (
	"unsafe"

	"github.com/wippyai/vtable/vrc"
)

// Geometry is an element's box in its parent's coordinate space.
type Geometry struct {
	X, Y, Width, Height float64
}

// Contains reports whether other lies entirely inside g, with other given in
// g's coordinate space.
func (g Geometry) Contains(other Geometry) bool {
	return other.X >= 0 && other.Y >= 0 &&
		other.X+other.Width <= g.Width &&
		other.Y+other.Height <= g.Height
}

// GeometryVTable lets a projected Geometry be used without knowing which
// element it came from.
type GeometryVTable struct {
	vrc.VTable
	Area  func(self unsafe.Pointer) float64
	Value func(self unsafe.Pointer) Geometry
}

var geometryVTable = GeometryVTable{
	VTable: vrc.VTableFor[Geometry](nil),
	Area: func(self unsafe.Pointer) float64 {
		g := (*Geometry)(self)
		return g.Width * g.Height
	},
	Value: func(self unsafe.Pointer) Geometry { return *(*Geometry)(self) },
}

func (Geometry) StaticVTable() *GeometryVTable { return &geometryVTable }

// GeometryHandle keeps an element alive through its geometry.
type GeometryHandle = vrc.VRcMappedDyn[VTable, GeometryVTable]

// GeometryOf projects r onto its geometry. The handle owns its own strong
// reference to the element; r is not consumed.
func GeometryOf(r Ref) GeometryHandle {
	m := vrc.MapDyn(r.Clone(), func(p vrc.Pin[vrc.VRef[VTable]]) vrc.Pin[*Geometry] {
		return vrc.ProjectRef(p, func(ref vrc.VRef[VTable]) *Geometry {
			return &ref.VTable().Base(ref.Pointer()).Geometry
		})
	})
	defer m.Release()
	return vrc.IntoDynMapped[GeometryVTable](m)
}

// Area returns the area of the geometry behind h.
func Area(h GeometryHandle) float64 {
	r := h.Borrow()
	return r.VTable().Area(r.Pointer())
}
