package closing

import (
	"fmt"

	"github.com/erp/gridsync/internal/domain/grid"
)

// Grid names
const (
	PeriodGrid    = "periods"
	ModuleTagGrid = "modules"
)

// PeriodSchema describes the period grid. The unposted counter and the
// profit/loss flag are maintained by posting and are read-only here;
// closedBy/closedAt are audit fields and never make a row dirty.
func PeriodSchema() *grid.Schema {
	return grid.NewSchema(PeriodGrid, []string{FieldPeriod},
		grid.Field{Name: FieldPeriod, Kind: grid.KindString, Tracked: true, Required: true, Rules: "len=6,numeric"},
		grid.Field{Name: FieldStatus, Kind: grid.KindString, Tracked: true, Required: true, Rules: "oneof=Open Close"},
		grid.Field{Name: FieldCloseTag, Kind: grid.KindString, Tracked: true, Rules: "omitempty,oneof=Y N"},
		grid.Field{Name: FieldUnpostedCount, Kind: grid.KindInt, ReadOnly: true},
		grid.Field{Name: FieldProfitLossClosing, Kind: grid.KindString, ReadOnly: true},
		grid.Field{Name: FieldRemark, Kind: grid.KindString, Tracked: true, Rules: "max=200"},
		grid.Field{Name: FieldClosedBy, Kind: grid.KindString, ReadOnly: true},
		grid.Field{Name: FieldClosedAt, Kind: grid.KindString, ReadOnly: true},
	)
}

// ModuleTagSchema describes the module tag grid of one period
func ModuleTagSchema() *grid.Schema {
	return grid.NewSchema(ModuleTagGrid, []string{FieldPeriod, FieldModule},
		grid.Field{Name: FieldPeriod, Kind: grid.KindString, Tracked: true, Required: true, ReadOnly: true},
		grid.Field{Name: FieldModule, Kind: grid.KindString, Tracked: true, Required: true, Rules: "max=10"},
		grid.Field{Name: FieldModuleName, Kind: grid.KindString, Rules: "max=50"},
		grid.Field{Name: FieldStatus, Kind: grid.KindString, Tracked: true, Required: true, Rules: "oneof=Open Close"},
		grid.Field{Name: FieldCloseTag, Kind: grid.KindString, Tracked: true, Rules: "omitempty,oneof=Y N"},
		grid.Field{Name: FieldUpdatedBy, Kind: grid.KindString, ReadOnly: true},
	)
}

// RegisterGuards installs the period status transition rules. Order matters:
// the first matching guard decides.
func RegisterGuards(e *grid.Engine) {
	e.Register(FieldStatus,
		grid.Guard{
			Name: "unposted-transactions",
			When: func(req grid.TransitionRequest, _ grid.TransitionContext) bool {
				return isForward(req) && req.Row.Int(FieldUnpostedCount) != 0
			},
			Then: func(req grid.TransitionRequest, _ grid.TransitionContext) grid.Decision {
				return grid.Reject(ReasonUnpostedTransactions,
					unpostedMessage(req.Row.String(FieldPeriod), req.Row.Int(FieldUnpostedCount)))
			},
		},
		grid.Guard{
			Name: "profit-loss-closed",
			When: func(req grid.TransitionRequest, _ grid.TransitionContext) bool {
				return isReverse(req) && req.Row.String(FieldProfitLossClosing) == FlagYes
			},
			Then: func(req grid.TransitionRequest, _ grid.TransitionContext) grid.Decision {
				return grid.Reject(ReasonProfitLossClosed, profitLossMessage(req.Row.String(FieldPeriod)))
			},
		},
		grid.Guard{
			Name: "confirm-reopen",
			When: func(req grid.TransitionRequest, _ grid.TransitionContext) bool {
				return isReverse(req)
			},
			Then: func(req grid.TransitionRequest, ctx grid.TransitionContext) grid.Decision {
				period := req.Row.String(FieldPeriod)
				return grid.Confirm("Reopen period",
					fmt.Sprintf("Reopen period %s? Every module of the period will be reopened.", period)).
					WithReplacement(grid.Values{FieldCloseTag: FlagNo}).
					WithCascade(moduleCascade(req, ctx, StatusOpen))
			},
		},
		grid.Guard{
			Name: "close-period",
			When: func(req grid.TransitionRequest, _ grid.TransitionContext) bool {
				return isForward(req)
			},
			Then: func(req grid.TransitionRequest, ctx grid.TransitionContext) grid.Decision {
				return grid.Accept().
					WithReplacement(grid.Values{FieldCloseTag: FlagYes}).
					WithCascade(moduleCascade(req, ctx, StatusClose))
			},
		},
	)
}

// NewEngine returns an engine with the closing rules installed
func NewEngine() *grid.Engine {
	e := grid.NewEngine()
	RegisterGuards(e)
	return e
}

// moduleCascade returns nil when the module tags of the edited period are not
// loaded; there is nothing to cascade into.
func moduleCascade(req grid.TransitionRequest, ctx grid.TransitionContext, to Status) *grid.Cascade {
	if !ctx.DependentLoadedFor(req.Row.ID) {
		return nil
	}
	return grid.NewCascade(grid.Values{
		FieldStatus:   to.String(),
		FieldCloseTag: TagFor(to),
	})
}

func isForward(req grid.TransitionRequest) bool {
	return statusOf(req.Previous) == StatusOpen && statusOf(req.Proposed) == StatusClose
}

func isReverse(req grid.TransitionRequest) bool {
	return statusOf(req.Previous) == StatusClose && statusOf(req.Proposed) == StatusOpen
}

func statusOf(v any) Status {
	s, _ := v.(string)
	return Status(s)
}
