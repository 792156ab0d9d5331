package scenarios

import (
	"testing"
	"time"

	"github.com/cuemby/fluxion/pkg/strategy"
	"github.com/cuemby/fluxion/pkg/types"
	"github.com/cuemby/fluxion/test/framework"
)

// TestLateJoin deploys an identity pipeline on a single-worker cluster, then
// adds a second worker after the fact, and checks the event-driven replay
// brings the newcomer's topology/deployment/links and NodeWorkerSup up to
// date without a redeploy.
func TestLateJoin(t *testing.T) {
	c := framework.NewCluster(t, 1)
	master := c.Master
	deps := master.Deps()

	rec := &framework.Recorder{}
	values := []any{1, 2, 3}

	wf := &types.Workflow{
		Name: "identity",
		Nodes: []*types.NodeSpec{
			{
				Name:      "src",
				Operation: framework.IdentityOp(),
				Strategy:  strategy.NewStreamSource(deps),
				Args:      strategy.NewStreamArgsFromSlice(values),
				Links:     map[string][]types.Destination{"out": {{Node: "sink", InPort: "in"}}},
			},
			{
				Name:      "sink",
				Operation: framework.SinkOp(rec),
				Strategy:  strategy.NewImmutableLocal(deps),
			},
		},
	}

	_, ref, err := master.Manager.Deploy(wf)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	framework.Eventually(t, 5*time.Second, 10*time.Millisecond, "sink to receive all values before late join", func() bool {
		return rec.Len() == len(values)
	})

	late := c.AddWorker(nil)

	framework.Eventually(t, 5*time.Second, 10*time.Millisecond, "late joiner to get a NodeWorkerSup via replay", func() bool {
		return framework.NodeSupExists(late, ref)
	})

	for _, tag := range []string{"topology", "deployment", "links"} {
		items, ok := framework.RemoteGet(master, late, tag, ref)
		if !ok {
			t.Errorf("late joiner missing %q record for %s", tag, ref)
			continue
		}
		want, _ := master.Store.Get(tag, ref)
		if len(items) != len(want) {
			t.Errorf("late joiner %q record has %d items, want %d", tag, len(items), len(want))
		}
	}
}
