package cluster

import "fmt"

// On calls method on exactly one node and decodes its result (§4.1's On
// primitive).
func (r *Runtime) On(addr string, method string, args any) (any, error) {
	if !r.IsMember(addr) && addr != r.SelfAddr {
		return nil, ErrUnknownNode
	}
	res, err := r.transport.Send(addr, Call{Method: method, Args: args})
	if err != nil {
		return nil, err
	}
	if res.Err != "" {
		return nil, fmt.Errorf("cluster: %s on %s: %s", method, addr, res.Err)
	}
	return res.Value, nil
}

// Notify sends a call without waiting for its result, for delivery paths
// that must not block the caller on a round trip (worker-to-worker sends
// across nodes). Failures are silent, matching §4.3's "no acknowledgement,
// fire-and-forget" delivery semantics.
func (r *Runtime) Notify(addr string, method string, args any) {
	go func() {
		_, _ = r.transport.Send(addr, Call{Method: method, Args: args})
	}()
}

// NodeResult pairs a node address with the outcome of one RPC, for the
// fan-out primitives below.
type NodeResult struct {
	Addr  string
	Value any
	Err   error
}

// OnMany calls method on every node in addrs concurrently (§4.1's OnMany).
func (r *Runtime) OnMany(addrs []string, method string, args any) []NodeResult {
	out := make([]NodeResult, len(addrs))
	done := make(chan int, len(addrs))
	for i, addr := range addrs {
		go func(i int, addr string) {
			val, err := r.On(addr, method, args)
			out[i] = NodeResult{Addr: addr, Value: val, Err: err}
			done <- i
		}(i, addr)
	}
	for range addrs {
		<-done
	}
	return out
}

// OnAllWorkers calls method on every current member.
func (r *Runtime) OnAllWorkers(method string, args any) []NodeResult {
	return r.OnMany(r.Members(), method, args)
}

// OnTaggedWorkers calls method on every member carrying tag.
func (r *Runtime) OnTaggedWorkers(tag, method string, args any) []NodeResult {
	return r.OnMany(r.TaggedMembers(tag), method, args)
}

// OnN calls method on n members chosen round-robin from the current
// membership, wrapping around when n exceeds the member count.
func (r *Runtime) OnN(n int, method string, args any) []NodeResult {
	members := r.Members()
	if len(members) == 0 || n <= 0 {
		return nil
	}
	picked := make([]string, 0, n)
	for i := 0; i < n; i++ {
		picked = append(picked, members[i%len(members)])
	}
	return r.OnMany(picked, method, args)
}
