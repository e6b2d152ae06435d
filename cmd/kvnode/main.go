// cmd/kvnode is the main entrypoint for a cluster node. Configuration comes
// from flags, optionally seeded from a TOML file, so a single binary can
// serve any role in the cluster.
//
// Example — single node, self-electing as primary:
//
//	./kvnode serve --id node1 --addr :9090 --admin-addr :9091 \
//	               --data-dir /var/kvstore/node1 --start-primary
//
// Example — 3-node cluster:
//
//	./kvnode serve --id node1 --addr :9090 --admin-addr :9190 --data-dir /tmp/n1 \
//	               --peers node2=localhost:9091,node3=localhost:9092
//	./kvnode serve --id node2 --addr :9091 --admin-addr :9191 --data-dir /tmp/n2 \
//	               --peers node1=localhost:9090,node3=localhost:9092
//	./kvnode serve --id node3 --addr :9092 --admin-addr :9192 --data-dir /tmp/n3 \
//	               --peers node1=localhost:9090,node2=localhost:9091
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/MariamHany01/key-valueDB/internal/cluster"
	"github.com/MariamHany01/key-valueDB/internal/config"
	"github.com/MariamHany01/key-valueDB/internal/server"
	"github.com/MariamHany01/key-valueDB/internal/store"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

var (
	nodeID            string
	listenAddr        string
	adminAddr         string
	dataDir           string
	peersFlag         string
	startPrimary      bool
	configPath        string
	checkpointEvery   time.Duration
	tickInterval      time.Duration
)

func main() {
	// automaxprocs (imported for its side effect) and automemlimit both run
	// at init/flag time to make this binary behave inside a container the
	// way it would on bare metal: GOMAXPROCS matched to the cgroup CPU
	// quota, GOMEMLIMIT matched to the cgroup memory limit.
	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroup),
	); err != nil {
		log.Printf("kvnode: automemlimit not applied: %v", err)
	}

	root := &cobra.Command{Use: "kvnode"}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a cluster node",
		RunE:  runServe,
	}

	cmd.Flags().StringVar(&nodeID, "id", "", "unique node identifier (default: a generated uuid)")
	cmd.Flags().StringVar(&listenAddr, "addr", ":9090", "client/peer wire protocol listen address")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", ":9091", "admin HTTP surface listen address (healthz, metrics, cluster)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "/tmp/kvstore", "parent directory; the WAL and checkpoint go in <data-dir>/<id>")
	cmd.Flags().StringVar(&peersFlag, "peers", "", "comma-separated peer list: id=host:port")
	cmd.Flags().BoolVar(&startPrimary, "start-primary", false, "bootstrap this node as PRIMARY at term 0 instead of waiting for an election")
	cmd.Flags().StringVar(&configPath, "config", "", "optional TOML config file; flags override its values")
	cmd.Flags().DurationVar(&checkpointEvery, "checkpoint-interval", 60*time.Second, "how often to checkpoint and truncate the WAL")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", cluster.HeartbeatPeriod, "how often the coordinator sends heartbeats or checks for an election")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyConfigDefaults(cfg)
	}

	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	nodeDataDir := fmt.Sprintf("%s/%s", dataDir, nodeID)
	s, err := store.Open(nodeDataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	peers, err := parsePeers(peersFlag)
	if err != nil {
		return err
	}
	membership := cluster.NewMembership(nodeID, listenAddr, peers)

	self, err := parseAddr(listenAddr)
	if err != nil {
		return fmt.Errorf("parse --addr: %w", err)
	}
	coordinator := cluster.NewCoordinator(s, membership, self, startPrimary)

	srv := server.New(listenAddr, s, coordinator)
	admin := server.NewAdminServer(adminAddr, s, coordinator, nodeID)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(tickInterval),
		gocron.NewTask(coordinator.Tick),
	); err != nil {
		return fmt.Errorf("schedule heartbeat/election tick: %w", err)
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(checkpointEvery),
		gocron.NewTask(func() {
			if err := s.Checkpoint(); err != nil {
				log.Printf("kvnode: checkpoint failed: %v", err)
			} else {
				log.Printf("kvnode: checkpoint saved")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("schedule checkpoint: %w", err)
	}

	scheduler.Start()
	defer scheduler.Shutdown()

	go func() {
		if err := admin.Serve(); err != nil {
			log.Printf("kvnode: admin server error: %v", err)
		}
	}()

	go func() {
		log.Printf("kvnode: %s listening on %s (admin on %s, %d peer(s))",
			nodeID, listenAddr, adminAddr, len(peers))
		if err := srv.Serve(); err != nil {
			log.Fatalf("kvnode: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("kvnode: shutting down %s", nodeID)
	srv.Stop()
	_ = admin.Shutdown()

	if err := s.Checkpoint(); err != nil {
		log.Printf("kvnode: final checkpoint error: %v", err)
	}

	return nil
}

func applyConfigDefaults(cfg *config.Config) {
	if nodeID == "" {
		nodeID = cfg.NodeID
	}
	if listenAddr == ":9090" && cfg.ListenAddr != "" {
		listenAddr = cfg.ListenAddr
	}
	if adminAddr == ":9091" && cfg.AdminAddr != "" {
		adminAddr = cfg.AdminAddr
	}
	if dataDir == "/tmp/kvstore" && cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}
	if !startPrimary {
		startPrimary = cfg.StartPrimary
	}
	if peersFlag == "" && len(cfg.Peers) > 0 {
		parts := make([]string, len(cfg.Peers))
		for i, p := range cfg.Peers {
			parts[i] = p.ID + "=" + p.Address
		}
		peersFlag = strings.Join(parts, ",")
	}
	if checkpointEvery == 60*time.Second && cfg.CheckpointInterval != "" {
		if d, err := time.ParseDuration(cfg.CheckpointInterval); err == nil {
			checkpointEvery = d
		} else {
			log.Printf("kvnode: ignoring invalid checkpoint_interval %q: %v", cfg.CheckpointInterval, err)
		}
	}
}

func parsePeers(raw string) ([]cluster.Peer, error) {
	if raw == "" {
		return nil, nil
	}
	var peers []cluster.Peer
	for _, entry := range strings.Split(raw, ",") {
		id, addr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid peer format %q: expected id=host:port", entry)
		}
		peers = append(peers, cluster.Peer{ID: id, Address: addr})
	}
	return peers, nil
}

func parseAddr(listenAddr string) (cluster.Addr, error) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return cluster.Addr{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return cluster.Addr{}, fmt.Errorf("invalid port in %q: %w", listenAddr, err)
	}
	if host == "" {
		host = "localhost"
	}
	return cluster.Addr{Host: host, Port: port}, nil
}
