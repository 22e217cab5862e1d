package stress

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/wippyai/vtable/vrc"
)

// Step is one checked assertion of a scenario.
type Step struct {
	Description string
	OK          bool
}

// Scenario is a scripted handle lifecycle whose steps can be printed.
type Scenario struct {
	Name    string
	Summary string
	Run     func(ctx context.Context) ([]Step, error)
}

// Passed reports whether every step held.
func Passed(steps []Step) bool {
	for _, s := range steps {
		if !s.OK {
			return false
		}
	}
	return true
}

type recorder []Step

func (r *recorder) check(ok bool, format string, args ...any) {
	*r = append(*r, Step{Description: fmt.Sprintf(format, args...), OK: ok})
}

// Scenarios returns the built in scenarios in a stable order.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:    "weak-outlives-strong",
			Summary: "three strong handles and a weak one; the destructor runs on the third release, the block lives until the weak release",
			Run:     weakOutlivesStrong,
		},
		{
			Name:    "mapped-keeps-owner",
			Summary: "a mapped handle keeps its owner alive after the original handle is released",
			Run:     mappedKeepsOwner,
		},
		{
			Name:    "upgrade-race",
			Summary: "final release races weak upgrade; upgrade never sees a destroyed payload",
			Run:     upgradeRace,
		},
	}
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range Scenarios() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

func weakOutlivesStrong(context.Context) ([]Step, error) {
	var r recorder
	drops := new(atomic.Int64)

	a := newSubject(1, drops)
	block := a.Pointer()
	b := a.Clone()
	c := a.Clone()
	r.check(a.StrongCount() == 3, "clone twice: strong count %d", a.StrongCount())

	w := a.Downgrade()
	early := w.Clone()
	r.check(a.WeakCount() == 2, "downgrade and clone the weak handle: weak count %d", a.WeakCount())

	a.Release()
	b.Release()
	r.check(drops.Load() == 0, "release two strong handles: destructor runs %d", drops.Load())

	c.Release()
	r.check(drops.Load() == 1, "release the third: destructor runs %d", drops.Load())
	r.check(blocks.IsLive(block), "block still allocated while weak handles exist")

	_, ok := early.Upgrade()
	r.check(!ok, "upgrade of the earlier weak clone fails")

	early.Release()
	r.check(blocks.IsLive(block), "release one weak handle: block still allocated")
	w.Release()
	r.check(!blocks.IsLive(block), "release the last weak handle: block deallocated")
	return r, nil
}

func mappedKeepsOwner(context.Context) ([]Step, error) {
	var r recorder
	drops := new(atomic.Int64)

	h := newSubject(42, drops)
	block := h.Pointer()
	m := vrc.Map(h.Clone(), func(p vrc.Pin[*subject]) vrc.Pin[*uint64] {
		return vrc.Project(p, func(x *subject) *uint64 { return &x.id })
	})
	r.check(*m.Get() == 42, "map onto the id field: %d", *m.Get())

	h.Release()
	r.check(drops.Load() == 0, "release the original handle: destructor runs %d", drops.Load())
	r.check(*m.Get() == 42, "projected value unchanged: %d", *m.Get())

	w := m.Downgrade()
	up, ok := w.Upgrade()
	r.check(ok && up.Get() == m.Get(), "weak mapped upgrade returns the same projection")
	up.Release()

	m.Release()
	r.check(drops.Load() == 1, "release the mapped handle: destructor runs %d", drops.Load())
	_, ok = w.Upgrade()
	r.check(!ok, "weak mapped upgrade fails after destruction")
	w.Release()
	r.check(!blocks.IsLive(block), "block deallocated")
	return r, nil
}

func upgradeRace(ctx context.Context) ([]Step, error) {
	var r recorder
	rep, err := Run(ctx, Options{Iterations: 2000})
	if err != nil {
		return r, err
	}
	r.check(rep.Violations == 0, "%d races, %d upgrades won, %d violations", rep.Iterations, rep.Upgrades, rep.Violations)
	r.check(rep.Destroyed == rep.Iterations, "destructor ran %d times", rep.Destroyed)
	r.check(rep.Leaked == 0, "%d blocks leaked", rep.Leaked)
	return r, nil
}
