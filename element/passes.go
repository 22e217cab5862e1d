package element

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/vtable/errors"
)

// Document is the unit passes operate on. It owns Root and every handle in
// Elements.
type Document struct {
	Root     Ref
	Elements []Ref
}

// NewDocument takes ownership of root.
func NewDocument(root Ref) *Document {
	return &Document{Root: root}
}

// Release gives up every handle the document owns.
func (d *Document) Release() {
	d.releaseElements()
	d.Root.Release()
}

func (d *Document) releaseElements() {
	for i := range d.Elements {
		d.Elements[i].Release()
	}
	d.Elements = nil
}

// Pass is one step of the pipeline.
type Pass struct {
	Name string
	Run  func(ctx context.Context, doc *Document, diag *Diagnostics) error
}

// DefaultPasses returns the standard pipeline in order.
func DefaultPasses() []Pass {
	return []Pass{CollectElements, GenerateItemIndices, CheckGeometry}
}

// RunPasses runs passes one after another. It stops at the first pass that
// returns an error or when ctx is done; diagnostics never stop the pipeline.
func RunPasses(ctx context.Context, doc *Document, diag *Diagnostics, passes ...Pass) error {
	if doc == nil || doc.Root.IsNil() {
		return errors.InvalidInput(errors.PhaseRuntime, "document has no root element")
	}
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.PhaseRuntime, errors.KindClosed, err, "pipeline cancelled before "+p.Name)
		}
		start := time.Now()
		if err := p.Run(ctx, doc, diag); err != nil {
			Logger().Warn("pass failed", zap.String("pass", p.Name), zap.Error(err))
			return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "pass "+p.Name)
		}
		Logger().Debug("pass done",
			zap.String("pass", p.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

// CollectElements fills doc.Elements with a strong handle to every element
// in tree order.
var CollectElements = Pass{
	Name: "collect-elements",
	Run: func(_ context.Context, doc *Document, _ *Diagnostics) error {
		doc.releaseElements()
		Walk(doc.Root, func(e Ref, _ int) bool {
			doc.Elements = append(doc.Elements, e.Clone())
			return true
		})
		return nil
	},
}

// GenerateItemIndices numbers elements in tree order.
var GenerateItemIndices = Pass{
	Name: "generate-item-indices",
	Run: func(_ context.Context, doc *Document, _ *Diagnostics) error {
		i := 0
		Walk(doc.Root, func(e Ref, _ int) bool {
			BaseOf(e).setItemIndex(i)
			i++
			return true
		})
		return nil
	},
}

// CheckGeometry reports negative sizes as errors and empty elements or
// children that overflow their parent as warnings.
var CheckGeometry = Pass{
	Name: "check-geometry",
	Run: func(_ context.Context, doc *Document, diag *Diagnostics) error {
		Walk(doc.Root, func(e Ref, _ int) bool {
			b := BaseOf(e)
			g := GeometryOf(e)
			defer g.Release()

			v := g.Borrow().VTable().Value(g.Borrow().Pointer())
			switch {
			case v.Width < 0 || v.Height < 0:
				diag.Errorf(b.ID, "negative size %gx%g", v.Width, v.Height)
			case Area(g) == 0:
				diag.Warnf(b.ID, "%s has zero area", KindOf(e))
			}

			if parent, ok := b.Parent(); ok {
				if !BaseOf(parent).Geometry.Contains(v) {
					diag.Warnf(b.ID, "overflows parent %s", BaseOf(parent).ID)
				}
				parent.Release()
			}
			return true
		})
		return nil
	},
}
