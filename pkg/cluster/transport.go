package cluster

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/yamux"

	"github.com/cuemby/fluxion/pkg/log"
)

// Handler answers one RPC method (§4.1 On/OnMany primitives).
type Handler func(args any) (any, error)

// Call is the wire envelope for a single RPC.
type Call struct {
	Method string
	Args   any
}

// Result is the wire envelope for a single RPC's answer.
type Result struct {
	Value any
	Err   string
}

// Transport delivers a Call to addr and returns its Result. Implementations
// are swapped per runtime mode: YamuxTransport for master/worker, loopback
// for local/test (§6).
type Transport interface {
	Send(addr string, call Call) (Result, error)
	Serve(handlers map[string]Handler) error
	Close() error
}

func (r *Runtime) registerBuiltins() {
	r.handlers["beacon"] = func(_ any) (any, error) {
		return r.Beacon(), nil
	}
	r.handlers["accept"] = func(args any) (any, error) {
		req, ok := args.(AcceptRequest)
		if !ok {
			return nil, fmt.Errorf("cluster: malformed accept request")
		}
		return r.acceptRemote(req)
	}
}

// RegisterHandler installs a method handler, used by packages layered on
// top of cluster (store, workflow, supervisor) to expose their own RPCs.
func (r *Runtime) RegisterHandler(method string, h Handler) {
	r.mu.Lock()
	r.handlers[method] = h
	r.mu.Unlock()
}

func (r *Runtime) dispatch(call Call) Result {
	r.mu.RLock()
	h, ok := r.handlers[call.Method]
	r.mu.RUnlock()
	if !ok {
		return Result{Err: ErrUnknownMethod.Error()}
	}
	val, err := h(call.Args)
	if err != nil {
		return Result{Err: err.Error()}
	}
	return Result{Value: val}
}

// Serve starts accepting incoming calls on the runtime's transport.
func (r *Runtime) Serve() error {
	return r.transport.Serve(r.handlers)
}

// ---- loopback transport (local/test modes) ----

// LoopbackTransport dispatches calls in-process by address, so several
// Runtimes can be wired into one test binary without touching a socket.
type LoopbackTransport struct {
	self *Runtime

	mu    sync.RWMutex
	peers map[string]*Runtime
}

var loopbackRegistryMu sync.Mutex
var loopbackRegistry = map[string]*Runtime{}

// NewLoopbackTransport builds a transport for self that resolves peers
// through a process-global address registry.
func NewLoopbackTransport(self *Runtime) *LoopbackTransport {
	t := &LoopbackTransport{self: self, peers: map[string]*Runtime{}}
	loopbackRegistryMu.Lock()
	loopbackRegistry[self.SelfAddr] = self
	loopbackRegistryMu.Unlock()
	return t
}

func (t *LoopbackTransport) Send(addr string, call Call) (Result, error) {
	loopbackRegistryMu.Lock()
	peer, ok := loopbackRegistry[addr]
	loopbackRegistryMu.Unlock()
	if !ok {
		return Result{}, ErrNotConnected
	}
	return peer.dispatch(call), nil
}

func (t *LoopbackTransport) Serve(_ map[string]Handler) error { return nil }

func (t *LoopbackTransport) Close() error {
	loopbackRegistryMu.Lock()
	delete(loopbackRegistry, t.self.SelfAddr)
	loopbackRegistryMu.Unlock()
	return nil
}

// ---- yamux/gob transport (master/worker modes) ----

// YamuxTransport multiplexes one yamux session per peer over a persistent
// TCP connection, framing each call/result pair with encoding/gob.
type YamuxTransport struct {
	selfAddr string

	mu       sync.Mutex
	sessions map[string]*yamux.Session

	listener net.Listener
}

// NewYamuxTransport builds a transport bound to selfAddr.
func NewYamuxTransport(selfAddr string) *YamuxTransport {
	return &YamuxTransport{selfAddr: selfAddr, sessions: map[string]*yamux.Session{}}
}

func (t *YamuxTransport) session(addr string) (*yamux.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[addr]; ok && !s.IsClosed() {
		return s, nil
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cluster: dial %s: %w", addr, err)
	}
	sess, err := yamux.Client(conn, nil)
	if err != nil {
		return nil, fmt.Errorf("cluster: yamux client %s: %w", addr, err)
	}
	t.sessions[addr] = sess
	return sess, nil
}

func (t *YamuxTransport) Send(addr string, call Call) (Result, error) {
	sess, err := t.session(addr)
	if err != nil {
		return Result{}, err
	}
	stream, err := sess.Open()
	if err != nil {
		t.mu.Lock()
		delete(t.sessions, addr)
		t.mu.Unlock()
		return Result{}, fmt.Errorf("cluster: open stream to %s: %w", addr, err)
	}
	defer stream.Close()

	enc := gob.NewEncoder(stream)
	if err := enc.Encode(&call); err != nil {
		return Result{}, fmt.Errorf("cluster: encode call: %w", err)
	}

	var res Result
	dec := gob.NewDecoder(bufio.NewReader(stream))
	if err := dec.Decode(&res); err != nil {
		return Result{}, fmt.Errorf("cluster: decode result from %s: %w", addr, err)
	}
	return res, nil
}

func (t *YamuxTransport) Serve(handlers map[string]Handler) error {
	ln, err := net.Listen("tcp", t.selfAddr)
	if err != nil {
		return fmt.Errorf("cluster: listen on %s: %w", t.selfAddr, err)
	}
	t.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go t.serveConn(conn, handlers)
		}
	}()
	return nil
}

func (t *YamuxTransport) serveConn(conn net.Conn, handlers map[string]Handler) {
	sess, err := yamux.Server(conn, nil)
	if err != nil {
		log.Errorf("cluster: yamux server handshake", err)
		return
	}
	for {
		stream, err := sess.Accept()
		if err != nil {
			return
		}
		go t.serveStream(stream, handlers)
	}
}

func (t *YamuxTransport) serveStream(stream net.Conn, handlers map[string]Handler) {
	defer stream.Close()

	var call Call
	dec := gob.NewDecoder(bufio.NewReader(stream))
	if err := dec.Decode(&call); err != nil {
		return
	}

	h, ok := handlers[call.Method]
	var res Result
	if !ok {
		res = Result{Err: ErrUnknownMethod.Error()}
	} else if val, err := h(call.Args); err != nil {
		res = Result{Err: err.Error()}
	} else {
		res = Result{Value: val}
	}

	enc := gob.NewEncoder(stream)
	_ = enc.Encode(&res)
}

func (t *YamuxTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.sessions {
		_ = s.Close()
	}
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

func init() {
	gob.Register(AcceptRequest{})
	gob.Register(BeaconInfo{})
}
