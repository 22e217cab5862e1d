// Package element is a small UI element tree built on vrc handles.
//
// Elements of different concrete types share one capability table layout,
// VTable, and are handled as erased Refs:
//
//	root := element.NewComponent("window", element.Geometry{Width: 200, Height: 100},
//	    element.NewRectangle("bg", element.Geometry{Width: 200, Height: 100}, 0xffffff),
//	    element.NewText("title", "Hello", element.Geometry{X: 10, Y: 10, Width: 80, Height: 20}),
//	)
//
// A component owns its children; each child refers back to its parent with a
// weak handle, so the tree has no strong cycles and releasing the root
// releases everything.
//
// Passes run over a Document in sequence and report problems to Diagnostics:
//
//	doc := element.NewDocument(root)
//	defer doc.Release()
//	err := element.RunPasses(ctx, doc, &diag, element.DefaultPasses()...)
package element
