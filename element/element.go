package element

import (
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/vtable/alloc"
	"github.com/wippyai/vtable/vrc"
)

// Kind identifies the concrete element type behind a Ref.
type Kind uint8

const (
	KindRectangle Kind = iota + 1
	KindText
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindRectangle:
		return "Rectangle"
	case KindText:
		return "Text"
	case KindComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// VTable is the capability table shared by all element types.
type VTable struct {
	vrc.VTable
	Kind     func(self unsafe.Pointer) Kind
	Base     func(self unsafe.Pointer) *Base
	Children func(self unsafe.Pointer) []Ref
}

// Ref is an owning, type erased element handle.
type Ref = vrc.VRc[VTable, vrc.Dyn]

// WeakRef is the weak counterpart of Ref.
type WeakRef = vrc.VWeak[VTable, vrc.Dyn]

var blocks = alloc.NewTracking(nil)

// Blocks returns the allocator every element is created in.
func Blocks() *alloc.Tracking {
	return blocks
}

// Base holds the state common to all elements. Passes annotate elements
// through its atomic fields; nothing else changes after construction.
type Base struct {
	ID       string
	Geometry Geometry

	index  int32          // item index + 1, 0 when unassigned; atomic
	parent unsafe.Pointer // *WeakRef; atomic
}

func (b *Base) base() *Base { return b }

// ItemIndex returns the index assigned by GenerateItemIndices.
func (b *Base) ItemIndex() (int, bool) {
	i := atomic.LoadInt32(&b.index)
	return int(i) - 1, i > 0
}

func (b *Base) setItemIndex(i int) {
	atomic.StoreInt32(&b.index, int32(i)+1)
}

// Parent returns a strong handle to the enclosing component, if it is still
// alive.
func (b *Base) Parent() (Ref, bool) {
	p := (*WeakRef)(atomic.LoadPointer(&b.parent))
	if p == nil {
		return Ref{}, false
	}
	return p.Upgrade()
}

func (b *Base) setParent(w WeakRef) {
	if old := (*WeakRef)(atomic.SwapPointer(&b.parent, unsafe.Pointer(&w))); old != nil {
		old.Release()
	}
}

// Drop releases the parent link.
func (b *Base) Drop() {
	if old := (*WeakRef)(atomic.SwapPointer(&b.parent, nil)); old != nil {
		old.Release()
	}
}

type Rectangle struct {
	Base
	Color uint32
}

type Text struct {
	Base
	Text     string
	FontSize float64
}

// Component owns its children. Children point back at it weakly.
type Component struct {
	Base
	Name     string
	children []Ref
}

// Drop releases the children and the parent link.
func (c *Component) Drop() {
	for i := range c.children {
		c.children[i].Release()
	}
	c.children = nil
	c.Base.Drop()
}

var (
	rectangleVTable = VTable{
		VTable:   vrc.VTableFor[Rectangle](blocks),
		Kind:     func(unsafe.Pointer) Kind { return KindRectangle },
		Base:     baseOf[Rectangle],
		Children: noChildren,
	}
	textVTable = VTable{
		VTable:   vrc.VTableFor[Text](blocks),
		Kind:     func(unsafe.Pointer) Kind { return KindText },
		Base:     baseOf[Text],
		Children: noChildren,
	}
	componentVTable = VTable{
		VTable:   vrc.VTableFor[Component](blocks),
		Kind:     func(unsafe.Pointer) Kind { return KindComponent },
		Base:     baseOf[Component],
		Children: func(self unsafe.Pointer) []Ref { return (*Component)(self).children },
	}
)

func (Rectangle) StaticVTable() *VTable { return &rectangleVTable }
func (Text) StaticVTable() *VTable      { return &textVTable }
func (Component) StaticVTable() *VTable { return &componentVTable }

func baseOf[X any, PX interface {
	*X
	base() *Base
}](self unsafe.Pointer) *Base {
	return PX((*X)(self)).base()
}

func noChildren(unsafe.Pointer) []Ref { return nil }

// NewRectangle creates a rectangle element.
func NewRectangle(id string, g Geometry, color uint32) Ref {
	return vrc.IntoDyn(vrc.New[VTable](Rectangle{Base: Base{ID: id, Geometry: g}, Color: color}))
}

// NewText creates a text element.
func NewText(id, text string, g Geometry) Ref {
	return vrc.IntoDyn(vrc.New[VTable](Text{Base: Base{ID: id, Geometry: g}, Text: text, FontSize: 12}))
}

// NewComponent creates a component that takes ownership of children and
// links each of them back to it with a weak handle.
func NewComponent(name string, g Geometry, children ...Ref) Ref {
	owned := make([]Ref, len(children))
	copy(owned, children)

	c := vrc.IntoDyn(vrc.New[VTable](Component{Base: Base{ID: name, Geometry: g}, Name: name, children: owned}))
	for _, child := range owned {
		BaseOf(child).setParent(c.Downgrade())
	}
	return c
}

// KindOf returns the element kind of r.
func KindOf(r Ref) Kind {
	return r.VTable().Kind(r.Borrow().Pointer())
}

// BaseOf returns the common state of r.
func BaseOf(r Ref) *Base {
	return r.VTable().Base(r.Borrow().Pointer())
}

// Children returns r's children. The handles are borrowed from r: clone one
// to keep it beyond r's lifetime.
func Children(r Ref) []Ref {
	return r.VTable().Children(r.Borrow().Pointer())
}
