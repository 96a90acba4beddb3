// Package cli wires the docwallet service together: configuration,
// logging, the durable store, the secrets vault, the document backend,
// the integration ports, the tick scheduler and the approval HTTP
// server, with graceful shutdown on SIGINT/SIGTERM.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Naveen-807/Franky-Docs-sub000/api"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/config"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
	"github.com/Naveen-807/Franky-Docs-sub000/docs/gdocs"
	"github.com/Naveen-807/Franky-Docs-sub000/docs/memory"
	"github.com/Naveen-807/Franky-Docs-sub000/engine"
	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/ports/bridge"
	"github.com/Naveen-807/Franky-Docs-sub000/ports/channel"
	"github.com/Naveen-807/Franky-Docs-sub000/ports/evm"
	"github.com/Naveen-807/Franky-Docs-sub000/ports/faucet"
	"github.com/Naveen-807/Franky-Docs-sub000/ports/market"
	"github.com/Naveen-807/Franky-Docs-sub000/ports/stacks"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
	"github.com/Naveen-807/Franky-Docs-sub000/statemanager"
	"github.com/Naveen-807/Franky-Docs-sub000/transport"
	"github.com/Naveen-807/Franky-Docs-sub000/vault"
	"github.com/Naveen-807/Franky-Docs-sub000/version"
)

// cfgFile holds the path given via --config. Empty means the standard
// search locations (., ./configs, ~/.docwallet, /etc/docwallet).
var cfgFile string

// RootCmd is the docwallet service entry point.
var RootCmd = &cobra.Command{
	Use:   "docwallet",
	Short: "document-driven treasury agent",
	Long: `DocWallet Service

Polls command tables in shared documents, parses DW commands, routes
fund-moving operations through an approval pipeline, executes them
against the configured chain and payment integrations, and writes
results back into the document.

Configuration is read from a YAML file, environment variables with the
DOCWALLET_ prefix, and a handful of legacy unprefixed names
(DOCWALLET_MASTER_KEY, PUBLIC_BASE_URL, DEMO_MODE).`,
	SilenceUsage: true,
	RunE:         runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetBuildInfo()
		fmt.Printf("docwallet %s (%s, %s)\n", info.Version, info.MainModule, info.GoVersion)
		for _, dep := range info.Dependencies {
			fmt.Printf("  %s %s\n", dep.Path, dep.Version)
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	RootCmd.AddCommand(versionCmd)
}

// newBackend selects the document adapter. The memory backend is for
// local development; a pinned doc id seeds it so the poll tick has
// something to read.
func newBackend(ctx context.Context, cfg *config.Config) (docs.Backend, error) {
	switch cfg.Docs.Backend {
	case "memory":
		b := memory.New()
		if cfg.Docs.DocID != "" {
			b.AddDocument(cfg.Docs.DocID, cfg.Docs.DocID)
		}
		return b, nil
	default:
		return gdocs.New(ctx, cfg.Docs.CredentialsFile, cfg.Docs.NamePrefix, cfg.Docs.DiscoverAll)
	}
}

// buildPorts constructs the integration set from configuration. Every
// port is optional; commands that need a missing one fail with a
// precondition error instead of preventing startup.
func buildPorts(ctx context.Context, cfg *config.Config) (*ports.Set, error) {
	set := &ports.Set{USDCContract: cfg.Ports.EVM.StablecoinContract}

	if cfg.Ports.EVM.Enabled {
		client, err := evm.Dial(ctx, cfg.Ports.EVM.RPCURL, cfg.Ports.EVM.ExplorerBase)
		if err != nil {
			return nil, fmt.Errorf("EVM port: %w", err)
		}
		set.EVM = client
	}

	if cfg.Ports.Stacks.Enabled {
		set.Stacks = stacks.New(transport.NewClient(),
			cfg.Ports.Stacks.APIURL, cfg.Ports.Stacks.SignerURL, cfg.Ports.Stacks.ExplorerBase)
	}

	if cfg.Ports.Market.PrimaryURL != "" {
		set.Market = market.New(transport.NewClient(), cfg.Ports.Market.PrimaryURL)
	}
	if cfg.Ports.Market.SecondaryURL != "" {
		set.MarketFallback = market.New(transport.NewClient(), cfg.Ports.Market.SecondaryURL)
	}

	if cfg.Ports.Bridge.Enabled {
		set.Bridge = bridge.New(transport.NewClient(), cfg.Ports.Bridge.APIURL)
	}
	if cfg.Ports.Channel.Enabled {
		set.Channel = channel.New(transport.NewClient(), cfg.Ports.Channel.APIURL)
	}
	if cfg.Ports.Faucet.Enabled {
		set.Faucet = faucet.New(transport.NewClient(), cfg.Ports.Faucet.APIURL)
	}

	return set, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	common.ConfigureLogger(cfg.Logging.Level, cfg.Logging.Format)
	log := common.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := repo.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	store.SetActivityCap(cfg.Engine.ActivityCap)

	v, err := vault.New(cfg.Vault.MasterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize docs backend: %w", err)
	}

	portSet, err := buildPorts(ctx, cfg)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, store, backend, portSet, v, statemanager.New())
	eng.StartupSweep(ctx)

	sched := engine.NewScheduler(eng)
	sched.Start(ctx)

	srv := api.New(cfg, eng)
	go func() {
		log.WithField("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
			Info("approval server starting")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("approval server failed: %v", err)
		}
	}()

	log.WithFields(map[string]interface{}{
		"backend": cfg.Docs.Backend,
		"demo":    cfg.Engine.DemoMode,
		"version": version.Version,
	}).Info("docwallet started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	sched.Stop(cfg.Server.ShutdownTimeout)
	if err := srv.Shutdown(); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	return nil
}
