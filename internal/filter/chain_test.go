package filter

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/itemfilter/internal/types"
)

func TestApply_EmptyInput(t *testing.T) {
	reg := &countingRegistry{mapRegistry: mapRegistry{}}
	c := NewCatalog(reg)
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "unknown", nil)))

	got, err := c.Apply(context.Background(), "f", nil, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("len(Apply()) = %d, want 0", len(got))
	}
	if reg.lookups != 0 {
		t.Errorf("registry lookups = %d, want 0", reg.lookups)
	}
}

func TestApply_NoRules(t *testing.T) {
	c := NewCatalog(nil)
	mustPut(t, c, mustFilter(t, "empty"))
	items := mustItems(t, "1", "2", "3")

	got, err := c.Apply(context.Background(), "empty", items, types.Params{"mode": "loose"})
	if err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	if !reflect.DeepEqual(got, items) {
		t.Errorf("Apply() = %v, want input unchanged", got)
	}
}

func TestApply_PriorityOrdering(t *testing.T) {
	for _, order := range [][]string{{"low", "high"}, {"high", "low"}} {
		t.Run(order[0]+"-first", func(t *testing.T) {
			var log []string
			reg := mapRegistry{
				"high": &stubRule{name: "high", priority: 10, log: &log},
				"low":  &stubRule{name: "low", priority: 5, log: &log},
			}
			f := mustFilter(t, "f")
			for _, name := range order {
				if err := f.AddRule(mustRuleDef(t, name, nil)); err != nil {
					t.Fatalf("AddRule() error = %v, want nil", err)
				}
			}
			c := NewCatalog(reg)
			mustPut(t, c, f)

			if _, err := c.Apply(context.Background(), "f", mustItems(t, "1"), nil); err != nil {
				t.Fatalf("Apply() error = %v, want nil", err)
			}
			if want := []string{"high", "low"}; !reflect.DeepEqual(log, want) {
				t.Errorf("execution order = %v, want %v", log, want)
			}
		})
	}
}

func TestApply_EqualPriorityKeepsGatheringOrder(t *testing.T) {
	var log []string
	reg := mapRegistry{
		"a": &stubRule{name: "a", priority: 1, log: &log},
		"b": &stubRule{name: "b", priority: 1, log: &log},
		"c": &stubRule{name: "c", priority: 1, log: &log},
	}
	parent := mustFilter(t, "parent", mustRuleDef(t, "a", nil))
	child := mustFilter(t, "child", mustRuleDef(t, "c", nil), mustRuleDef(t, "b", nil))
	child.Parent = "parent"
	c := NewCatalog(reg)
	mustPut(t, c, parent, child)

	if _, err := c.Apply(context.Background(), "child", mustItems(t, "1"), nil); err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(log, want) {
		t.Errorf("execution order = %v, want %v", log, want)
	}
}

func TestApply_CallerParamsOverride(t *testing.T) {
	rule := &stubRule{name: "r", priority: 1}
	c := NewCatalog(mapRegistry{"r": rule})
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "r", types.Params{"mode": "strict", "depth": "2"})))

	if _, err := c.Apply(context.Background(), "f", mustItems(t, "1"), types.Params{"mode": "loose"}); err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	want := types.Params{"mode": "loose", "depth": "2"}
	if !reflect.DeepEqual(rule.params[0], want) {
		t.Errorf("params = %v, want %v", rule.params[0], want)
	}

	stored, _ := c.Get("f")
	if v, _ := stored.Rule("r").Param("mode"); v != "strict" {
		t.Errorf("stored mode = %q, want strict (caller params must not persist)", v)
	}
}

func TestApply_EarlyExit(t *testing.T) {
	first := &stubRule{name: "first", priority: 10, fn: dropAll}
	second := &stubRule{name: "second", priority: 1}
	c := NewCatalog(mapRegistry{"first": first, "second": second})
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "second", nil), mustRuleDef(t, "first", nil)))

	got, err := c.Apply(context.Background(), "f", mustItems(t, "1", "2"), nil)
	if err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Apply() = %v, want empty non-nil slice", got)
	}
	if first.calls != 1 {
		t.Errorf("first.calls = %d, want 1", first.calls)
	}
	if second.calls != 0 {
		t.Errorf("second.calls = %d, want 0", second.calls)
	}
}

func TestApply_Inheritance(t *testing.T) {
	rule := &stubRule{name: "r", priority: 1}
	c := NewCatalog(mapRegistry{"r": rule})
	parent := mustFilter(t, "parent", mustRuleDef(t, "r", nil))
	child := mustFilter(t, "child")
	child.Parent = "parent"
	mustPut(t, c, parent, child)

	if _, err := c.Apply(context.Background(), "child", mustItems(t, "1"), nil); err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	if rule.calls != 1 {
		t.Errorf("parent rule calls = %d, want 1", rule.calls)
	}
}

func TestApply_SameNameInheritedRulesAllRun(t *testing.T) {
	rule := &stubRule{name: "r", priority: 1}
	c := NewCatalog(mapRegistry{"r": rule})
	parent := mustFilter(t, "parent", mustRuleDef(t, "r", types.Params{"from": "parent"}))
	child := mustFilter(t, "child", mustRuleDef(t, "r", types.Params{"from": "child"}))
	child.Parent = "parent"
	mustPut(t, c, parent, child)

	if _, err := c.Apply(context.Background(), "child", mustItems(t, "1"), nil); err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	if rule.calls != 2 {
		t.Fatalf("calls = %d, want 2", rule.calls)
	}
	if rule.params[0]["from"] != "child" || rule.params[1]["from"] != "parent" {
		t.Errorf("params = %v, want child then parent", rule.params)
	}
}

func TestApply_SelfParentCycle(t *testing.T) {
	c := NewCatalog(nil)
	f := mustFilter(t, "loop")
	f.Parent = "loop"
	mustPut(t, c, f)

	_, err := c.Apply(context.Background(), "loop", mustItems(t, "1"), nil)
	if !errors.Is(err, types.ErrProbableCycle) {
		t.Fatalf("Apply() error = %v, want ErrProbableCycle", err)
	}
}

func TestApply_IndirectCycle(t *testing.T) {
	c := NewCatalog(nil)
	a := mustFilter(t, "a")
	b := mustFilter(t, "b")
	cc := mustFilter(t, "c")
	a.Parent, b.Parent, cc.Parent = "b", "c", "a"
	mustPut(t, c, a, b, cc)

	_, err := c.Apply(context.Background(), "a", mustItems(t, "1"), nil)
	if !errors.Is(err, types.ErrProbableCycle) {
		t.Fatalf("Apply() error = %v, want ErrProbableCycle", err)
	}
}

func TestApply_DeepAcyclicChain(t *testing.T) {
	c := NewCatalog(nil)
	const depth = 150
	for i := 0; i < depth; i++ {
		f := mustFilter(t, name(i), mustRuleDef(t, TestRuleName, nil))
		if i > 0 {
			f.Parent = name(i - 1)
		}
		mustPut(t, c, f)
	}

	chain, err := c.Compile(name(depth - 1))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if chain.Len() != depth {
		t.Errorf("Len() = %d, want %d", chain.Len(), depth)
	}
}

func name(i int) string {
	return "f" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestApply_MissingParent(t *testing.T) {
	c := NewCatalog(nil)
	f := mustFilter(t, "orphan")
	f.Parent = "gone"
	mustPut(t, c, f)

	_, err := c.Apply(context.Background(), "orphan", mustItems(t, "1"), nil)
	if !errors.Is(err, types.ErrFilterNotFound) {
		t.Fatalf("Apply() error = %v, want ErrFilterNotFound", err)
	}
}

func TestApply_RuleNotFound(t *testing.T) {
	c := NewCatalog(mapRegistry{})
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "sys_missing", nil)))

	_, err := c.Apply(context.Background(), "f", mustItems(t, "1"), nil)
	if !errors.Is(err, types.ErrRuleNotFound) {
		t.Fatalf("Apply() error = %v, want ErrRuleNotFound", err)
	}
}

func TestApply_TestRuleWithoutRegistry(t *testing.T) {
	c := NewCatalog(nil)
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, TestRuleName, nil)))
	items := mustItems(t, "1", "2")

	got, err := c.Apply(context.Background(), "f", items, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}
	if len(got) != 2 {
		t.Errorf("len(Apply()) = %d, want 2", len(got))
	}
}

func TestApply_RuleErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := NewCatalog(mapRegistry{"bad": failingRule{err: boom}})
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "bad", nil)))

	_, err := c.Apply(context.Background(), "f", mustItems(t, "1"), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Apply() error = %v, want boom", err)
	}
}

func TestApply_CancelledContext(t *testing.T) {
	rule := &stubRule{name: "r", priority: 1}
	c := NewCatalog(mapRegistry{"r": rule})
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "r", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Apply(ctx, "f", mustItems(t, "1"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Apply() error = %v, want context.Canceled", err)
	}
	if rule.calls != 0 {
		t.Errorf("calls = %d, want 0", rule.calls)
	}
}

// F has A (priority 1, x=1); parent P has B (priority 5). B runs first and
// keeps item1 only; A then sees [item1] with {x: 1}.
func TestApply_WorkedExample(t *testing.T) {
	var log []string
	a := &stubRule{name: "A", priority: 1, log: &log}
	b := &stubRule{name: "B", priority: 5, log: &log, fn: keepFirst}
	c := NewCatalog(mapRegistry{"A": a, "B": b})

	p := mustFilter(t, "P", mustRuleDef(t, "B", nil))
	f := mustFilter(t, "F", mustRuleDef(t, "A", types.Params{"x": "1"}))
	f.Parent = "P"
	mustPut(t, c, p, f)

	items := mustItems(t, "1", "2")
	got, err := c.Apply(context.Background(), "F", items, types.Params{})
	if err != nil {
		t.Fatalf("Apply() error = %v, want nil", err)
	}

	if want := []string{"B", "A"}; !reflect.DeepEqual(log, want) {
		t.Errorf("execution order = %v, want %v", log, want)
	}
	if len(a.inputs[0]) != 1 || a.inputs[0][0] != items[0] {
		t.Errorf("A input = %v, want [item1]", a.inputs[0])
	}
	if !reflect.DeepEqual(a.params[0], types.Params{"x": "1"}) {
		t.Errorf("A params = %v, want {x: 1}", a.params[0])
	}
	if len(got) != 1 || got[0] != items[0] {
		t.Errorf("Apply() = %v, want [item1]", got)
	}
}

func TestChain_SnapshotIgnoresLaterEdits(t *testing.T) {
	rule := &stubRule{name: "r", priority: 1}
	c := NewCatalog(mapRegistry{"r": rule})
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "r", types.Params{"v": "old"})))

	chain, err := c.Compile("f")
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}

	edited, _ := c.Get("f")
	if err := edited.Rule("r").SetParam("v", "new"); err != nil {
		t.Fatalf("SetParam() error = %v, want nil", err)
	}
	mustPut(t, c, edited)

	if _, err := chain.Filter(context.Background(), mustItems(t, "1"), nil); err != nil {
		t.Fatalf("Filter() error = %v, want nil", err)
	}
	if rule.params[0]["v"] != "old" {
		t.Errorf("v = %q, want old", rule.params[0]["v"])
	}
}

func TestChain_Rules(t *testing.T) {
	c := NewCatalog(mapRegistry{
		"hi": &stubRule{priority: 9},
		"lo": &stubRule{priority: -1},
	})
	mustPut(t, c, mustFilter(t, "f", mustRuleDef(t, "lo", nil), mustRuleDef(t, "hi", nil)))

	chain, err := c.Compile("f")
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	want := []string{"f/hi@9", "f/lo@-1"}
	if got := chain.Rules(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rules() = %v, want %v", got, want)
	}
}

type failingRule struct{ err error }

func (failingRule) Priority() int { return 0 }

func (f failingRule) Filter(context.Context, []*types.FilterItem, types.Params) ([]*types.FilterItem, error) {
	return nil, f.err
}

func TestApply_OrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rules run by descending priority, ties in definition order", prop.ForAll(
		func(priorities []int) bool {
			var log []string
			reg := mapRegistry{}
			f, err := NewFilter("f", "")
			if err != nil {
				return false
			}
			for i, p := range priorities {
				name := "r" + strconv.Itoa(i)
				reg[name] = &stubRule{name: name, priority: p, log: &log}
				rd, err := NewRuleDef(name, nil)
				if err != nil || f.AddRule(rd) != nil {
					return false
				}
			}
			items, err := types.NewFilterItem("1", "", "", nil, nil)
			if err != nil {
				return false
			}
			c := NewCatalog(reg)
			if err := c.Put(f); err != nil {
				return false
			}
			if _, err := c.Apply(context.Background(), "f", []*types.FilterItem{items}, nil); err != nil {
				return false
			}
			if len(log) != len(priorities) {
				return false
			}
			for i := 1; i < len(log); i++ {
				prev, _ := strconv.Atoi(log[i-1][1:])
				cur, _ := strconv.Atoi(log[i][1:])
				if priorities[prev] < priorities[cur] {
					return false
				}
				if priorities[prev] == priorities[cur] && prev > cur {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-5, 5)),
	))

	properties.TestingRun(t)
}
