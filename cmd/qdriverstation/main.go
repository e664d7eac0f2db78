// Command qdriverstation runs a headless driver station: it scans the
// LAN for the robot controller, streams 2015-protocol control packets
// at it and logs what the robot reports back.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/K9-guardian/QDriverStation/internal/config"
	"github.com/K9-guardian/QDriverStation/internal/ds"
	"github.com/K9-guardian/QDriverStation/internal/fetch"
	"github.com/K9-guardian/QDriverStation/internal/proto2015"
	"github.com/K9-guardian/QDriverStation/internal/sockets"
	"github.com/K9-guardian/QDriverStation/internal/telemetry"
)

var (
	flagConfig   string
	flagTeam     int
	flagRobot    string
	flagInterval int
	flagMetrics  string
)

func main() {
	root := &cobra.Command{
		Use:           "qdriverstation",
		Short:         "Headless FRC driver station",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "", "path to Lua config file")
	root.Flags().IntVarP(&flagTeam, "team", "t", 0, "team number (overrides config)")
	root.Flags().StringVar(&flagRobot, "robot", "", "robot address, skips the LAN scan")
	root.Flags().IntVar(&flagInterval, "interval", 0, "control packet interval in ms (overrides config)")
	root.Flags().StringVar(&flagMetrics, "metrics", "", "Prometheus listen address (overrides config)")

	if err := root.Execute(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flagTeam != 0 {
		cfg.Team = flagTeam
	}
	if flagInterval != 0 {
		cfg.IntervalMs = flagInterval
	}
	if flagMetrics != "" {
		cfg.MetricsAddr = flagMetrics
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(envStr("QDS_LOG_LEVEL", cfg.LogLevel)),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		telemetry.Enable(prometheus.DefaultRegisterer)
		go serveMetrics(ctx, cfg.MetricsAddr, logger)
	}

	fetcher := fetch.NewFTPFetcher(logger)
	proto := proto2015.New(cfg.Team, fetcher, logger)
	defer proto.Close()

	proto.OnVoltageChanged = func(volts float64) {
		logger.Debug("voltage", "volts", volts)
	}
	proto.OnCodeChanged = func(present bool) {
		logger.Info("robot code", "present", present)
	}
	proto.OnControlModeChanged = func(mode ds.ControlMode) {
		logger.Info("control mode echo changed", "mode", mode)
	}
	proto.OnLibVersionChanged = func(version string) {
		logger.Info("library version", "version", version)
	}
	proto.OnPCMVersionChanged = func(version string) {
		logger.Info("pcm firmware", "version", version)
	}
	proto.OnPDPVersionChanged = func(version string) {
		logger.Info("pdp firmware", "version", version)
	}

	manager := sockets.New(logger)
	defer manager.Close()

	manager.OnRobotPacket = func(data []byte) {
		proto.ReadRobotData(data)
	}
	manager.SetRobotInputPort(proto2015.ClientPort)
	manager.SetRobotOutputPort(proto2015.RobotPort)
	if cfg.CustomSocketCount > 0 {
		manager.SetCustomSocketCount(cfg.CustomSocketCount)
	}
	if flagRobot != "" {
		manager.SetRobotAddress(flagRobot)
		proto.SetRobotAddress(flagRobot)
	}
	manager.SetAddressList(cfg.Addresses)

	logger.Info("driver station started",
		"team", cfg.Team,
		"interval_ms", cfg.IntervalMs,
		"candidates", len(manager.AddressList()),
		"pool", manager.SocketCount(),
	)

	ticker := time.NewTicker(time.Duration(cfg.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			manager.SendToRobot(proto.GenerateClientPacket())
			manager.RefreshAddressList()
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	logger.Info("metrics listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "err", err)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
