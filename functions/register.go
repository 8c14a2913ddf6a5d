package functions

import (
	"sync"

	"github.com/calcengine/formulacore/ast"
)

var (
	defaultOnce sync.Once
	defaultReg  *ast.Registry
)

// DefaultRegistry returns the process-wide registry holding every
// built-in function, populated once at first use.
func DefaultRegistry() *ast.Registry {
	defaultOnce.Do(func() {
		defaultReg = ast.NewRegistry()
		Register(defaultReg)
	})
	return defaultReg
}

// Register installs every built-in function into r. Callers that want a
// private registry (tests stubbing a function, hosts exposing a subset)
// build their own ast.Registry and call this.
func Register(r *ast.Registry) {
	registerMath(r)
	registerStats(r)
	registerLogic(r)
	registerText(r)
	registerDate(r)
	registerLookup(r)
	registerCondAgg(r)
	registerFinance(r)
}
