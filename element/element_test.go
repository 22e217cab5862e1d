package element

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/vrc"
)

func box(x, y, w, h float64) Geometry {
	return Geometry{X: x, Y: y, Width: w, Height: h}
}

func sampleTree() Ref {
	return NewComponent("window", box(0, 0, 200, 100),
		NewRectangle("bg", box(0, 0, 200, 100), 0xffffff),
		NewComponent("toolbar", box(0, 0, 200, 20),
			NewText("title", "Hello", box(4, 2, 80, 16)),
		),
	)
}

func TestKindsAndChildren(t *testing.T) {
	root := sampleTree()
	defer root.Release()

	assert.Equal(t, KindComponent, KindOf(root))
	children := Children(root)
	require.Len(t, children, 2)
	assert.Equal(t, KindRectangle, KindOf(children[0]))
	assert.Equal(t, "bg", BaseOf(children[0]).ID)
	assert.Equal(t, KindComponent, KindOf(children[1]))
	assert.Empty(t, Children(children[0]))

	text, ok := vrc.DowncastRef[VTable, Text](Children(children[1])[0].Borrow())
	require.True(t, ok)
	assert.Equal(t, "Hello", text.Text)
	assert.Equal(t, "Text", KindText.String())
}

func TestWalkOrder(t *testing.T) {
	root := sampleTree()
	defer root.Release()

	var ids []string
	var depths []int
	complete := Walk(root, func(e Ref, depth int) bool {
		ids = append(ids, BaseOf(e).ID)
		depths = append(depths, depth)
		return true
	})
	assert.True(t, complete)
	assert.Equal(t, []string{"window", "bg", "toolbar", "title"}, ids)
	assert.Equal(t, []int{0, 1, 1, 2}, depths)
	assert.Equal(t, 4, Count(root))

	visited := 0
	complete = Walk(root, func(Ref, int) bool {
		visited++
		return visited < 2
	})
	assert.False(t, complete)
	assert.Equal(t, 2, visited)
}

func TestParentLinksAreWeak(t *testing.T) {
	root := sampleTree()
	rootBlock := root.Pointer()

	title := Children(Children(root)[1])[0].Clone()
	parent, ok := BaseOf(title).Parent()
	require.True(t, ok)
	assert.Equal(t, "toolbar", BaseOf(parent).ID)
	parent.Release()

	assert.Equal(t, 1, root.StrongCount())
	root.Release()
	assert.False(t, Blocks().IsLive(rootBlock))

	// The toolbar is gone with the root; title survives through its clone.
	_, ok = BaseOf(title).Parent()
	assert.False(t, ok)
	assert.Equal(t, "title", BaseOf(title).ID)

	titleBlock := title.Pointer()
	title.Release()
	assert.False(t, Blocks().IsLive(titleBlock))
}

func TestReleaseFreesWholeTree(t *testing.T) {
	before := Blocks().Stats().Live
	root := sampleTree()
	assert.Equal(t, before+4, Blocks().Stats().Live)

	root.Release()
	assert.Equal(t, before, Blocks().Stats().Live)
}

func TestGeometryOf(t *testing.T) {
	rect := NewRectangle("r", box(1, 2, 3, 4), 0)
	block := rect.Pointer()

	g := GeometryOf(rect)
	rect.Release()

	assert.True(t, Blocks().IsLive(block), "geometry handle keeps the element alive")
	assert.Equal(t, 12.0, Area(g))
	assert.Equal(t, box(1, 2, 3, 4), g.Borrow().VTable().Value(g.Borrow().Pointer()))

	origin := g.Origin()
	assert.Equal(t, "r", BaseOf(origin).ID)
	origin.Release()

	g.Release()
	assert.False(t, Blocks().IsLive(block))
}

func TestRunPasses(t *testing.T) {
	doc := NewDocument(sampleTree())
	var diag Diagnostics

	err := RunPasses(context.Background(), doc, &diag, DefaultPasses()...)
	require.NoError(t, err)

	require.Len(t, doc.Elements, 4)
	for want, e := range doc.Elements {
		got, ok := BaseOf(e).ItemIndex()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.False(t, diag.HasErrors())
	assert.Empty(t, diag.All(), diag.String())

	// Running again replaces the collected handles instead of leaking them.
	require.NoError(t, RunPasses(context.Background(), doc, &diag, CollectElements))
	assert.Len(t, doc.Elements, 4)
	assert.Equal(t, 2, doc.Elements[0].StrongCount())

	before := Blocks().Stats().Live
	doc.Release()
	assert.Equal(t, before-4, Blocks().Stats().Live)
}

func TestCheckGeometryDiagnostics(t *testing.T) {
	doc := NewDocument(NewComponent("panel", box(0, 0, 50, 50),
		NewRectangle("too-wide", box(10, 10, 100, 10), 0),
		NewRectangle("empty", box(0, 0, 0, 10), 0),
		NewText("broken", "x", box(0, 0, -1, 5)),
	))
	defer doc.Release()

	var diag Diagnostics
	require.NoError(t, RunPasses(context.Background(), doc, &diag, CheckGeometry))

	all := diag.All()
	require.Len(t, all, 3, diag.String())
	assert.Equal(t, Diagnostic{LevelWarning, "too-wide", "overflows parent panel"}, all[0])
	assert.Equal(t, Diagnostic{LevelWarning, "empty", "Rectangle has zero area"}, all[1])
	assert.Equal(t, LevelError, all[2].Level)
	assert.Equal(t, "broken", all[2].Element)
	assert.True(t, diag.HasErrors())
}

func TestRunPassesErrors(t *testing.T) {
	var diag Diagnostics
	err := RunPasses(context.Background(), &Document{}, &diag)
	assert.True(t, errors.Is(err, &verrors.Error{Phase: verrors.PhaseRuntime, Kind: verrors.KindInvalidInput}))

	doc := NewDocument(NewText("t", "x", box(0, 0, 1, 1)))
	defer doc.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RunPasses(ctx, doc, &diag, CollectElements)
	assert.True(t, errors.Is(err, &verrors.Error{Phase: verrors.PhaseRuntime, Kind: verrors.KindClosed}))
	assert.Empty(t, doc.Elements)

	failing := Pass{Name: "fail", Run: func(context.Context, *Document, *Diagnostics) error {
		return verrors.InvalidInput(verrors.PhaseRuntime, "boom")
	}}
	err = RunPasses(context.Background(), doc, &diag, failing, CollectElements)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail")
	assert.Empty(t, doc.Elements, "passes after a failure do not run")
}

func TestAnnotationsConcurrent(t *testing.T) {
	doc := NewDocument(sampleTree())
	defer doc.Release()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var diag Diagnostics
			assert.NoError(t, RunPasses(context.Background(), doc, &diag, GenerateItemIndices))
			Walk(doc.Root, func(e Ref, _ int) bool {
				if p, ok := BaseOf(e).Parent(); ok {
					p.Release()
				}
				_, _ = BaseOf(e).ItemIndex()
				return true
			})
		}()
	}
	wg.Wait()

	i := 0
	Walk(doc.Root, func(e Ref, _ int) bool {
		got, ok := BaseOf(e).ItemIndex()
		assert.True(t, ok)
		assert.Equal(t, i, got)
		i++
		return true
	})
}

func TestElementsCopyByValue(t *testing.T) {
	// Payloads are moved into their blocks by value; the copy starts unannotated.
	r := Rectangle{Base: Base{ID: "copy", Geometry: box(0, 0, 1, 1)}}
	ref := vrc.IntoDyn(vrc.New[VTable](r))
	defer ref.Release()

	_, ok := BaseOf(ref).ItemIndex()
	assert.False(t, ok)
	_, ok = BaseOf(ref).Parent()
	assert.False(t, ok)
	assert.Equal(t, "copy", BaseOf(ref).ID)
}
