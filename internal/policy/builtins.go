package policy

import (
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/types"
)

const dateLayout = "2006-01-02"

// clock backs the date built-ins. Tests swap it with SetClock.
var (
	clockMu sync.RWMutex
	clock   = time.Now
)

// SetClock replaces the clock used by planwing.days_until and returns a
// function restoring the previous one.
func SetClock(now func() time.Time) func() {
	clockMu.Lock()
	prev := clock
	clock = now
	clockMu.Unlock()
	return func() {
		clockMu.Lock()
		clock = prev
		clockMu.Unlock()
	}
}

func today() time.Time {
	clockMu.RLock()
	now := clock()
	clockMu.RUnlock()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var registerOnce sync.Once

// RegisterBuiltins registers the planner built-ins with OPA. Registration is
// global, so it happens once per process.
//
//	planwing.days_until(date)  -> days from today to a YYYY-MM-DD date (negative when past, null when unparseable)
//	planwing.weekday(date)     -> 0 (Sunday) .. 6, null when unparseable
func RegisterBuiltins() {
	registerOnce.Do(func() {
		rego.RegisterBuiltin1(&rego.Function{
			Name: "planwing.days_until",
			Decl: types.NewFunction(types.Args(types.S), types.N),
		}, func(_ rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
			s, ok := a.Value.(ast.String)
			if !ok {
				return nil, nil
			}
			d, err := time.Parse(dateLayout, string(s))
			if err != nil {
				return nil, nil
			}
			return ast.IntNumberTerm(int(d.Sub(today()).Hours() / 24)), nil
		})

		rego.RegisterBuiltin1(&rego.Function{
			Name:    "planwing.weekday",
			Decl:    types.NewFunction(types.Args(types.S), types.N),
			Memoize: true,
		}, func(_ rego.BuiltinContext, a *ast.Term) (*ast.Term, error) {
			s, ok := a.Value.(ast.String)
			if !ok {
				return nil, nil
			}
			d, err := time.Parse(dateLayout, string(s))
			if err != nil {
				return nil, nil
			}
			return ast.IntNumberTerm(int(d.Weekday())), nil
		})
	})
}
