package cluster

import (
	"fmt"

	"github.com/cuemby/fluxion/pkg/health"
	"github.com/cuemby/fluxion/pkg/log"
)

// AcceptRequest is what a connecting node sends the remote during the
// accept half of the handshake (§4.1).
type AcceptRequest struct {
	Addr  string
	Mode  Mode
	Tags  []string
	Token string
}

// AcceptResponse confirms the remote accepted the new member and reports
// its own address back, so the connector can add it symmetrically.
type AcceptResponse struct {
	Addr string
	Mode Mode
	Tags []string
}

// Connect runs the full beacon/connect handshake against addr (§4.1):
//
//  1. liveness probe (bare TCP dial)
//  2. beacon fetch, checked against expectMode and Compatible
//  3. accept request, carrying a signed join token
//  4. on success both sides add each other as members; on any failure
//     the attempt is rolled back and nothing is added.
func (r *Runtime) Connect(addr string, expectMode Mode) error {
	if r.Mode != ModeMaster && r.Mode != ModeWorker {
		return ErrNotDistributed
	}

	checker := health.NewTCPChecker(health.Config{})
	if st := checker.Check(addr); !st.Healthy {
		return fmt.Errorf("%w: %s", ErrNotConnected, st.Message)
	}

	beaconRes, err := r.transport.Send(addr, Call{Method: "beacon"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFluxion, err)
	}
	if beaconRes.Err != "" {
		return fmt.Errorf("%w: %s", ErrNotFluxion, beaconRes.Err)
	}
	beacon, ok := beaconRes.Value.(BeaconInfo)
	if !ok {
		return ErrNotFluxion
	}
	if expectMode != "" && beacon.Mode != expectMode {
		return fmt.Errorf("%w: wanted %s, got %s", ErrModeMismatch, expectMode, beacon.Mode)
	}
	if !versionCompatible(beacon.Version) {
		return fmt.Errorf("%w: remote speaks %s", ErrIncompatible, beacon.Version)
	}

	token, err := r.mintToken(addr)
	if err != nil {
		return fmt.Errorf("cluster: mint join token: %w", err)
	}

	req := AcceptRequest{Addr: r.SelfAddr, Mode: r.Mode, Tags: r.Tags, Token: token}
	acceptRes, err := r.transport.Send(addr, Call{Method: "accept", Args: req})
	if err != nil {
		return fmt.Errorf("%w: accept rpc: %v", ErrNotConnected, err)
	}
	if acceptRes.Err != "" {
		return fmt.Errorf("cluster: accept rejected by %s: %s", addr, acceptRes.Err)
	}
	resp, ok := acceptRes.Value.(AcceptResponse)
	if !ok {
		return fmt.Errorf("cluster: malformed accept response from %s", addr)
	}

	r.Add(resp.Addr, resp.Tags)
	log.WithComponent("cluster").Info().Str("addr", resp.Addr).Str("mode", string(resp.Mode)).Msg("connected")
	return nil
}

// acceptRemote runs the local half of the handshake when another node
// calls us with "accept". Rejects unknown modes and bad tokens, rolling
// back without mutating membership on any failure.
func (r *Runtime) acceptRemote(req AcceptRequest) (AcceptResponse, error) {
	if req.Mode != ModeMaster && req.Mode != ModeWorker {
		return AcceptResponse{}, ErrUnknownMode
	}
	if err := r.verifyToken(req.Token); err != nil {
		return AcceptResponse{}, err
	}

	r.Add(req.Addr, req.Tags)
	return AcceptResponse{Addr: r.SelfAddr, Mode: r.Mode, Tags: r.Tags}, nil
}

func versionCompatible(v string) bool {
	for _, c := range Compatible {
		if c == v {
			return true
		}
	}
	return false
}
