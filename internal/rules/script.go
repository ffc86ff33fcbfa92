package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/solatis/itemfilter/internal/types"
)

// DefaultScriptTimeout bounds one script rule invocation over a whole item list.
const DefaultScriptTimeout = 100 * time.Millisecond

// ScriptRule keeps items for which a JavaScript body returns true.
//
// The body runs as `function accept(item, params) { <script> }`; item has the
// same fields as the expression rule's environment.
// Example: `return item.attrs.locale === "en-us";`
type ScriptRule struct {
	// Timeout applies when the rule's `timeout` parameter is absent and is
	// the ceiling for that parameter. Zero means DefaultScriptTimeout.
	Timeout time.Duration
}

type scriptConfig struct {
	Script  string        `param:"script"`
	Timeout time.Duration `param:"timeout"`
}

func (*ScriptRule) Name() string  { return "sys_script" }
func (*ScriptRule) Priority() int { return PriorityScript }

func (r *ScriptRule) Filter(ctx context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	limit := r.Timeout
	if limit <= 0 {
		limit = DefaultScriptTimeout
	}
	cfg := scriptConfig{Timeout: limit}
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Script) == "" {
		return nil, fmt.Errorf("%w: %s: script required", types.ErrInvalidArgument, r.Name())
	}
	if cfg.Timeout <= 0 || cfg.Timeout > limit {
		cfg.Timeout = limit
	}

	// goja runtimes are not goroutine safe; one per invocation.
	vm := goja.New()
	if _, err := vm.RunString("function accept(item, params) {\n" + cfg.Script + "\n}"); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidArgument, r.Name(), err)
	}
	accept, ok := goja.AssertFunction(vm.Get("accept"))
	if !ok {
		return nil, fmt.Errorf("%s: accept is not a function", r.Name())
	}

	timer := time.AfterFunc(cfg.Timeout, func() {
		vm.Interrupt("execution timeout")
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	ps := vm.ToValue(map[string]any(paramsEnv(params)))
	out := make([]*types.FilterItem, 0, len(items))
	for _, it := range items {
		env, err := itemEnv(it, params)
		if err != nil {
			return nil, err
		}
		res, err := accept(goja.Undefined(), vm.ToValue(env), ps)
		if err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, fmt.Errorf("%s: timed out after %s", r.Name(), cfg.Timeout)
			}
			return nil, fmt.Errorf("%s: %w", r.Name(), err)
		}
		if res.ToBoolean() {
			out = append(out, it)
		}
	}
	return out, nil
}

func paramsEnv(params types.Params) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
