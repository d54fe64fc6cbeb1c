package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/leandrodaf/stagewire/internal/announce"
	"github.com/leandrodaf/stagewire/internal/config"
	"github.com/leandrodaf/stagewire/internal/peer"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	sdkdmx "github.com/leandrodaf/stagewire/sdk/dmx"
	sdkpeer "github.com/leandrodaf/stagewire/sdk/peer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run DMX output, device discovery and the peer network",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	common := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
		contracts.WithMetrics(reg),
	}

	frames := sdkdmx.NewFrameBuffer(cfg.DMX.Universes)
	dmxOpts := append(common, contracts.WithDMXConfig(cfg.DMXOptions()))
	ctrl, err := sdkdmx.NewController(frames, dmxOpts...)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	classes := []sdkdmx.DeviceClass{cfg.ArtNetClass()}
	if cfg.DMX.Enttec.Enabled {
		classes = append(classes, &sdkdmx.EnttecClass{})
	}

	peerOpts := append(common, contracts.WithPeerConfig(contracts.PeerConfig{
		Resolver: sdkpeer.NewSystemResolver(log),
	}))
	peers, err := sdkpeer.NewRegistry(peerOpts...)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Peers.Store)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		snapshot, err := store.Load(ctx)
		if err != nil {
			log.Warn("could not load peer store", log.Field().Error("error", err))
		} else {
			peers.Restore(snapshot)
			log.Info("peer store loaded", log.Field().Int("peers", len(snapshot)))
		}
	}

	instance := cfg.Peers.InstanceID
	if instance == "" {
		instance = peer.NewInstanceID()
	}
	features, err := config.ParseFeatures(cfg.Peers.Features)
	if err != nil {
		return err
	}

	listener, announcer, err := startPeerNetwork(cfg.Peers.Listen, cfg.Peers.AnnounceTarget, announce.Packet{
		Instance: instance,
		Role:     cfg.Peers.Role,
		Features: features,
	}, peers, log)
	if err != nil {
		return err
	}

	log.Info("stagewire running",
		log.Field().String("instance", instance),
		log.Field().Int("universes", cfg.DMX.Universes),
		log.Field().String("announce", listener.Addr().String()))

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		sdkdmx.RunDiscovery(ctx, ctrl, classes, dmxOpts...)
	}()
	go func() {
		defer wg.Done()
		if err := listener.Serve(ctx); err != nil {
			log.Error("announce listener stopped", log.Field().Error("error", err))
		}
	}()
	go func() {
		defer wg.Done()
		announcer.Run(ctx, cfg.Peers.AnnounceInterval)
	}()
	go func() {
		defer wg.Done()
		watchPeers(ctx, peers, cfg.Peers.OnlineThreshold)
	}()

	<-ctx.Done()
	wg.Wait()
	log.Info("shutting down")

	if store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Save(saveCtx, peers.Snapshot()); err != nil {
			log.Error("could not save peer store", log.Field().Error("error", err))
		}
	}
	return nil
}

// startPeerNetwork binds the announce listener and an announcer sharing its
// socket, so that ping replies reach the listener.
func startPeerNetwork(listen, target string, p announce.Packet, peers *peer.Registry, lg contracts.Logger) (*announce.Listener, *announce.Announcer, error) {
	listener, err := announce.Listen(listen, p.Instance, peers, nil, lg)
	if err != nil {
		return nil, nil, err
	}
	announcer, err := listener.NewAnnouncer(target, p, peers)
	if err != nil {
		_ = listener.Close()
		return nil, nil, err
	}
	return listener, announcer, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint failed", log.Field().Error("error", err))
		}
	}()
	return srv
}

func openStore(ctx context.Context, sc config.StoreConfig) (peer.Store, error) {
	switch sc.Kind {
	case "yaml":
		return peer.NewYAMLStore(sc.Path), nil
	case "sqlite":
		return peer.NewSQLiteStore(ctx, sc.Path)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown peer store %q", sc.Kind)
	}
}

// watchPeers refreshes the peer gauges and logs peers going offline.
func watchPeers(ctx context.Context, peers *sdkpeer.Registry, threshold time.Duration) {
	ticker := time.NewTicker(max(threshold/2, 100*time.Millisecond))
	defer ticker.Stop()

	online := map[string]bool{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := map[string]bool{}
		for _, p := range peers.OnlinePeers(threshold) {
			now[p.InstanceID] = true
		}
		for id := range online {
			if !now[id] {
				log.Warn("peer went offline", log.Field().String("instance", id))
			}
		}
		online = now
	}
}
