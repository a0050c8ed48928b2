package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/infrastructure/surface"
)

func TestEngine_FirstMatchingGuardWins(t *testing.T) {
	e := grid.NewEngine()
	var evaluated []string
	guard := func(name string, match bool, d grid.Decision) grid.Guard {
		return grid.Guard{
			Name: name,
			When: func(grid.TransitionRequest, grid.TransitionContext) bool {
				evaluated = append(evaluated, name)
				return match
			},
			Then: func(grid.TransitionRequest, grid.TransitionContext) grid.Decision { return d },
		}
	}
	e.Register("state",
		guard("first", false, grid.Reject("FIRST", "first")),
		guard("second", true, grid.Reject("SECOND", "second")),
		guard("third", true, grid.Accept()),
	)

	d := e.EvaluateTransition(grid.TransitionRequest{Field: "state"}, grid.TransitionContext{})

	assert.False(t, d.Accepted)
	assert.Equal(t, "SECOND", d.Reason)
	assert.Equal(t, []string{"first", "second"}, evaluated)
	assert.Equal(t, []string{"first", "second", "third"}, e.Guards("state"))
}

func TestEngine_DefaultAcceptsWithoutCascade(t *testing.T) {
	e := grid.NewEngine()
	d := e.EvaluateTransition(grid.TransitionRequest{Field: "other"}, grid.TransitionContext{})
	assert.True(t, d.Accepted)
	assert.False(t, d.RequiresConfirmation)
	assert.Nil(t, d.Cascade)
	assert.False(t, e.Watches("other"))
}

func TestDecisionBuilders(t *testing.T) {
	d := grid.Confirm("Title", "Sure?").
		WithReplacement(grid.Values{"tag": "N"}).
		WithCascade(grid.NewCascade(grid.Values{"state": "off"}))

	assert.True(t, d.Accepted)
	assert.True(t, d.RequiresConfirmation)
	assert.Equal(t, "Title", d.ConfirmTitle)
	assert.Equal(t, "N", d.Replacement["tag"])
	require.NotNil(t, d.Cascade)
	assert.Equal(t, "off", d.Cascade.Target["state"])
}

func loadedDependent(master string) (*grid.DependentCollection, *surface.MemorySurface) {
	s := surface.New("parts")
	dc := grid.NewDependentCollection(s, grid.NewLedger(partSchema(), grid.NewSnapshotStore()))
	var rows []*grid.Row
	for _, v := range partRows(master) {
		rows = append(rows, grid.NewRow(grid.Identity(master+"|"+v["part"].(string)), v))
	}
	dc.Load(grid.Identity(master), rows)
	return dc, s
}

func TestCascade_AppliesToEveryRowAndIsIdempotent(t *testing.T) {
	dc, s := loadedDependent("A")
	cascade := grid.NewCascade(grid.Values{"state": "off"})

	changed := cascade.Apply(dc)
	require.Len(t, changed, 2)
	s.ForEachRow(func(r *grid.Row) bool {
		assert.Equal(t, "off", r.String("state"))
		assert.Equal(t, grid.LifecycleUpdated, r.Lifecycle)
		return true
	})
	refreshes := s.DrainRefreshes()
	require.Len(t, refreshes, 1)
	assert.Contains(t, refreshes[0].Fields, grid.LifecycleColumn)

	again := cascade.Apply(dc)
	assert.Empty(t, again)
	assert.Empty(t, s.DrainRefreshes())
}

func TestCascade_RowAlreadyAtTargetIsNotRetagged(t *testing.T) {
	dc, s := loadedDependent("A")
	first := row(s, "A|p1")
	first.Set("state", "off")
	first.Lifecycle = grid.LifecycleUnchanged

	changed := grid.NewCascade(grid.Values{"state": "off"}).Apply(dc)

	require.Len(t, changed, 1)
	assert.Equal(t, grid.Identity("A|p2"), changed[0].ID)
	assert.Equal(t, grid.LifecycleUnchanged, first.Lifecycle)
}

func TestCascade_SkipsDeletedRows(t *testing.T) {
	dc, s := loadedDependent("A")
	row(s, "A|p1").Lifecycle = grid.LifecycleDeleted

	changed := grid.NewCascade(grid.Values{"state": "off"}).Apply(dc)

	require.Len(t, changed, 1)
	assert.Equal(t, "on", row(s, "A|p1").String("state"))
}

func TestCascade_UnloadedCollectionIsNoop(t *testing.T) {
	s := surface.New("parts")
	dc := grid.NewDependentCollection(s, grid.NewLedger(partSchema(), grid.NewSnapshotStore()))
	assert.Nil(t, grid.NewCascade(grid.Values{"state": "off"}).Apply(dc))
	assert.False(t, dc.IsLoadedFor("A"))
}

func TestDependentCollection_Reset(t *testing.T) {
	dc, s := loadedDependent("A")
	assert.True(t, dc.IsLoadedFor("A"))
	assert.False(t, dc.IsLoadedFor("B"))

	dc.Reset()
	_, loaded := dc.LoadedFor()
	assert.False(t, loaded)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, dc.Ledger().Snapshots().Len())
}
