package workflow

import (
	"fmt"
	"sync"

	"github.com/cuemby/fluxion/pkg/strategy"
	"github.com/cuemby/fluxion/pkg/types"
)

// DeployFunc builds the Workflow an embedding application wants
// auto-deployed at boot, given the args from §6's `deploy: (module,
// function, args)` config key and the strategy dependencies this
// runtime constructed. Embedding applications register one of these
// per deploy target in their own init(), the same self-registering
// pattern database/sql drivers use, because Go has no runtime
// apply(module, function, args).
type DeployFunc func(args any, deps strategy.Deps) (*types.Workflow, error)

var (
	deployTargetsMu sync.Mutex
	deployTargets   = map[string]DeployFunc{}
)

// RegisterDeployFunc makes fn available under key for cmd/fluxion's
// config-driven auto-deploy to resolve at boot. Panics on a duplicate
// key, matching the fail-fast convention of init()-time registrations.
func RegisterDeployFunc(key string, fn DeployFunc) {
	deployTargetsMu.Lock()
	defer deployTargetsMu.Unlock()
	if _, exists := deployTargets[key]; exists {
		panic(fmt.Sprintf("workflow: deploy target %q already registered", key))
	}
	deployTargets[key] = fn
}

// LookupDeployFunc returns the DeployFunc registered under key, if any.
func LookupDeployFunc(key string) (DeployFunc, bool) {
	deployTargetsMu.Lock()
	defer deployTargetsMu.Unlock()
	fn, ok := deployTargets[key]
	return fn, ok
}
