// Command fluxion is the mode-aware process entrypoint (§6): it reads
// configuration, wires every core package together, optionally
// auto-deploys a configured workflow, and serves RPC traffic until
// interrupted. It deliberately has no subcommands — workflow
// authoring and the DSL are out of scope (§5's Non-goals) — mirroring
// the teacher's manager/worker boot sequence without its cobra CLI
// tree.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cuemby/fluxion/pkg/cluster"
	"github.com/cuemby/fluxion/pkg/config"
	"github.com/cuemby/fluxion/pkg/deploy"
	"github.com/cuemby/fluxion/pkg/log"
	"github.com/cuemby/fluxion/pkg/metrics"
	"github.com/cuemby/fluxion/pkg/store"
	"github.com/cuemby/fluxion/pkg/strategy"
	"github.com/cuemby/fluxion/pkg/supervisor"
	"github.com/cuemby/fluxion/pkg/worker"
	"github.com/cuemby/fluxion/pkg/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fluxion: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("FLUXION_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: cfg.Mode != config.ModeLocal})
	logger := log.WithComponent("main")

	if cfg.Telemetry {
		metrics.Register()
		go func() {
			if err := http.ListenAndServe(":9090", metrics.Handler()); err != nil {
				logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	mode := cluster.Mode(cfg.Mode)

	var transport cluster.Transport
	if mode == cluster.ModeMaster || mode == cluster.ModeWorker {
		transport = cluster.NewYamuxTransport(cfg.BindAddr)
	}

	rt := cluster.New(mode, cfg.BindAddr, cfg.Tags, transport)
	rt.JoinSecret = cfg.JoinSecret

	st, err := store.Open(filepath.Join(cfg.DataDir, "store.db"), rt)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := supervisor.NewRegistry()
	worker.RegisterHandlers(rt)
	supervisor.RegisterHandlers(rt, reg, st)

	deployer := deploy.New(rt, st, reg)

	var opts []workflow.Option
	if mode == cluster.ModeMaster {
		opts = append(opts, workflow.WithRaft(cfg.BindAddr, raftBindAddr(cfg.BindAddr), filepath.Join(cfg.DataDir, "raft")))
	}
	mgr := workflow.New(rt, st, reg, deployer, opts...)
	defer mgr.Close()

	if mode == cluster.ModeMaster || mode == cluster.ModeWorker {
		if err := rt.Serve(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	switch mode {
	case cluster.ModeWorker:
		if err := rt.Connect(cfg.Master, cluster.ModeMaster); err != nil {
			return fmt.Errorf("connect to master %s: %w", cfg.Master, err)
		}
	case cluster.ModeMaster:
		for _, addr := range cfg.Workers {
			if err := rt.Connect(addr, cluster.ModeWorker); err != nil {
				logger.Warn().Str("addr", addr).Err(err).Msg("initial worker connect failed")
			}
		}
	}

	if cfg.Deploy != nil {
		fn, ok := workflow.LookupDeployFunc(cfg.Deploy.Key)
		if !ok {
			return fmt.Errorf("no deploy target registered for %q", cfg.Deploy.Key)
		}
		wf, err := fn(cfg.Deploy.Args, strategy.Deps{RT: rt, Reg: reg, Store: st})
		if err != nil {
			return fmt.Errorf("build workflow %q: %w", cfg.Deploy.Key, err)
		}
		_, ref, err := mgr.Deploy(wf)
		if err != nil {
			return fmt.Errorf("deploy %q: %w", cfg.Deploy.Key, err)
		}
		logger.Info().Str("workflow_ref", ref).Str("deploy_key", cfg.Deploy.Key).Msg("auto-deployed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")
	return nil
}

// raftBindAddr offsets the cluster bind port by one so the raft
// transport never contends with the cluster RPC listener on the same
// address.
func raftBindAddr(bindAddr string) string {
	host, portStr, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return bindAddr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return bindAddr
	}
	return net.JoinHostPort(host, strconv.Itoa(port+1))
}
