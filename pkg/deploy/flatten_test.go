package deploy

import (
	"testing"

	"github.com/cuemby/fluxion/pkg/types"
)

// fixtureOp is a minimal types.Operation with a configurable in-port list,
// enough to exercise flatten's in-port name resolution.
type fixtureOp struct {
	in        []string
	out       []string
	noDefault bool
}

func (o fixtureOp) InPorts() []string  { return o.in }
func (o fixtureOp) OutPorts() []string { return o.out }
func (o fixtureOp) DefaultStrategy() types.Strategy {
	if o.noDefault {
		return nil
	}
	return fixtureStrategy{}
}
func (fixtureOp) InitialState() any { return nil }
func (fixtureOp) CallbackInfo(string) (types.CallbackInfo, bool) {
	return types.CallbackInfo{}, false
}
func (fixtureOp) Call(string, any, any, []any) (types.CallbackResult, error) {
	return types.CallbackResult{}, types.ErrUnknownCallback
}

type fixtureStrategy struct{}

func (fixtureStrategy) Deploy(*types.Context) (any, error)     { return nil, nil }
func (fixtureStrategy) Deliver(*types.Context, any, int) error { return nil }
func (fixtureStrategy) Process(*types.Context, types.WorkerMessage, any, string) (types.PartialResult, error) {
	return types.PartialResult{}, nil
}

func singlePort(name string) fixtureOp { return fixtureOp{in: []string{name}, out: []string{name}} }

func TestFlattenAssignsDenseIndicesInOrder(t *testing.T) {
	wf := &types.Workflow{
		Name: "wf",
		Nodes: []*types.NodeSpec{
			{Name: "a", Operation: singlePort("in")},
			{Name: "b", Operation: singlePort("in")},
			{Name: "c", Operation: singlePort("in")},
		},
	}

	flat, err := flatten(wf)
	if err != nil {
		t.Fatalf("flatten() error = %v", err)
	}
	if len(flat.Nodes) != 3 {
		t.Fatalf("len(Nodes) = %d, want 3", len(flat.Nodes))
	}
	for i, n := range flat.Nodes {
		if n.Index != i {
			t.Errorf("Nodes[%d].Index = %d, want %d", i, n.Index, i)
		}
	}
	if flat.Nodes[0].Name != "a" || flat.Nodes[1].Name != "b" || flat.Nodes[2].Name != "c" {
		t.Errorf("names = %v, want [a b c]", []string{flat.Nodes[0].Name, flat.Nodes[1].Name, flat.Nodes[2].Name})
	}
}

func TestFlattenResolvesLinksToPortIndex(t *testing.T) {
	wf := &types.Workflow{
		Name: "wf",
		Nodes: []*types.NodeSpec{
			{
				Name:      "src",
				Operation: fixtureOp{out: []string{"out"}},
				Links:     map[string][]types.Destination{"out": {{Node: "sink", InPort: "second"}}},
			},
			{
				Name:      "sink",
				Operation: fixtureOp{in: []string{"first", "second"}},
			},
		},
	}

	flat, err := flatten(wf)
	if err != nil {
		t.Fatalf("flatten() error = %v", err)
	}
	links := flat.Nodes[0].Links["out"]
	if len(links) != 1 {
		t.Fatalf("len(Links[out]) = %d, want 1", len(links))
	}
	if links[0].NodeIndex != 1 {
		t.Errorf("NodeIndex = %d, want 1 (sink)", links[0].NodeIndex)
	}
	if links[0].InPort != 1 {
		t.Errorf("InPort = %d, want 1 (\"second\" is index 1)", links[0].InPort)
	}
}

func TestFlattenUnknownInPortErrors(t *testing.T) {
	wf := &types.Workflow{
		Name: "wf",
		Nodes: []*types.NodeSpec{
			{
				Name:      "src",
				Operation: fixtureOp{out: []string{"out"}},
				Links:     map[string][]types.Destination{"out": {{Node: "sink", InPort: "no-such-port"}}},
			},
			{Name: "sink", Operation: fixtureOp{in: []string{"in"}}},
		},
	}

	if _, err := flatten(wf); err == nil {
		t.Error("flatten() with an unknown in-port name, want error")
	}
}

func TestFlattenUnknownLinkDestinationErrors(t *testing.T) {
	wf := &types.Workflow{
		Name: "wf",
		Nodes: []*types.NodeSpec{
			{
				Name:      "src",
				Operation: singlePort("out"),
				Links:     map[string][]types.Destination{"out": {{Node: "ghost", InPort: "in"}}},
			},
		},
	}

	if _, err := flatten(wf); err == nil {
		t.Error("flatten() with an unknown link destination, want error")
	}
}

func TestFlattenMissingStrategyErrors(t *testing.T) {
	wf := &types.Workflow{
		Name: "wf",
		Nodes: []*types.NodeSpec{
			{Name: "a", Operation: fixtureOp{noDefault: true}}, // no Strategy supplied, no default either
		},
	}

	if _, err := flatten(wf); err == nil {
		t.Error("flatten() with no strategy available, want error")
	}
}

func TestFlattenInlinesSubWorkflowWithPrefixedNames(t *testing.T) {
	sub := &types.Workflow{
		Name: "inner",
		Nodes: []*types.NodeSpec{
			{Name: "leaf", Operation: singlePort("in")},
		},
	}
	wf := &types.Workflow{
		Name: "outer",
		Nodes: []*types.NodeSpec{
			{
				Name:        "group",
				SubWorkflow: sub,
			},
		},
	}

	flat, err := flatten(wf)
	if err != nil {
		t.Fatalf("flatten() error = %v", err)
	}
	if len(flat.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1 (group is a pure sub-workflow container)", len(flat.Nodes))
	}
	if flat.Nodes[0].Name != "group/leaf" {
		t.Errorf("Name = %q, want \"group/leaf\"", flat.Nodes[0].Name)
	}
}
