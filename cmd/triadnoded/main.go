// Triadledger node daemon: a fixed three-member cohort running a
// Nakamoto-style proof-of-work chain.
//
// Usage:
//
//	triadnoded --p2p-listen=/ip4/0.0.0.0/tcp/9000 --peers=<multiaddr>,<multiaddr> --mine --generate
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/multiformats/go-multiaddr"

	"github.com/triadledger/node/internal/chain"
	"github.com/triadledger/node/internal/config"
	"github.com/triadledger/node/internal/control"
	"github.com/triadledger/node/internal/generator"
	"github.com/triadledger/node/internal/gossip"
	"github.com/triadledger/node/internal/identity"
	klog "github.com/triadledger/node/internal/log"
	"github.com/triadledger/node/internal/mempool"
	"github.com/triadledger/node/internal/miner"
	"github.com/triadledger/node/internal/minerworker"
	"github.com/triadledger/node/internal/server"
	"github.com/triadledger/node/internal/state"
	"github.com/triadledger/node/pkg/block"
	"github.com/triadledger/node/pkg/types"
)

func main() {
	// ── 1. Load config (defaults → flags) ────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ────────────────────────────────────────────────
	if err := klog.Init(cfg.LogLevel, cfg.LogJSON, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	// ── 3. Select this node's cohort identity ────────────────────────
	keys, err := identity.Keys()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to derive cohort keypairs")
	}
	cohortIndex := cfg.CohortIndex
	if cohortIndex < 0 {
		// cfg.P2PListen is a multiaddr ending in "/tcp/<port>"; its last
		// character is already the port's last digit.
		cohortIndex, err = identity.SelectFromPort(cfg.P2PListen)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to derive cohort index from P2P listen address")
		}
	}
	self := keys[cohortIndex]
	peer0 := keys[(cohortIndex+1)%identity.CohortSize]
	peer1 := keys[(cohortIndex+2)%identity.CohortSize]

	logger.Info().
		Int("cohort_index", self.Index).
		Str("address", self.Address.String()).
		Msg("cohort identity selected")

	// ── 4. Chain, mempool, and state index ───────────────────────────
	chainStore := chain.New()
	genesisHash := chainStore.Tip()

	// The genesis ICO allocation: cohort member 0 alone owns the
	// single genesis output every other UTXO ultimately descends from.
	icoState := state.Snapshot{
		{TxHash: types.Hash{}, Index: 0}: {Value: 100, Recipient: keys[0].Address},
	}
	stateIndex := state.NewIndex(genesisHash, icoState)
	pool := mempool.New()

	logger.Info().Str("genesis", genesisHash.String()).Msg("chain initialized")

	// ── 5. Network server ─────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, cfg.P2PListen, cfg.InboundCap)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start network server")
	}

	for _, addr := range cfg.Peers {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("skipping invalid peer multiaddr")
			continue
		}
		if _, err := srv.Dial(ctx, ma); err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("failed to dial cohort peer")
		}
	}

	// ── 6. Gossip worker pool ──────────────────────────────────────────
	gossipPool := gossip.New(srv.Inbound(), pool, chainStore, stateIndex, srv)
	go gossipPool.Run(cfg.GossipWorkers)

	// ── 7. Miner and miner worker ──────────────────────────────────────
	finishedBlocks := make(chan *block.Block, 64)
	m := miner.New(pool, chainStore, finishedBlocks)
	mw := minerworker.New(finishedBlocks, chainStore, stateIndex, srv)

	go m.Run()
	go mw.Run()

	if cfg.AutoStartMiner {
		m.Control() <- controlStart(cfg.MineInterval)
	}

	// ── 8. Transaction generator ─────────────────────────────────────
	gen := generator.New(self.Key, peer0.Address, peer1.Address, pool, stateIndex, chainStore, srv)
	go gen.Run()

	if cfg.AutoStartGen {
		gen.Control() <- controlStart(cfg.GenerateInterval)
	}

	// ── 9. Read-only introspection handle ───────────────────────────────
	// This is the contract a future administrative HTTP surface would be
	// handed; no such server is started here.
	introspector := &control.Node{Chain: chainStore, Index: stateIndex}

	// ── 10. Startup banner ──────────────────────────────────────────────
	logger.Info().
		Bool("mining", cfg.AutoStartMiner).
		Bool("generating", cfg.AutoStartGen).
		Int("gossip_workers", cfg.GossipWorkers).
		Int("chain_height", len(introspector.LongestChain())-1).
		Msg("node started")

	// ── 11. Wait for shutdown ────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	m.Control() <- control.Signal{Kind: control.Exit}
	mw.Control() <- control.Signal{Kind: control.Exit}
	gen.Control() <- control.Signal{Kind: control.Exit}
	cancel()

	logger.Info().Msg("goodbye")
}

func controlStart(interval int) control.Signal {
	return control.Signal{Kind: control.Start, Interval: interval}
}
