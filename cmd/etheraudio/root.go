package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chg95211/msx-ethernet-audio/internal/capture"
	"github.com/chg95211/msx-ethernet-audio/internal/config"
	"github.com/chg95211/msx-ethernet-audio/internal/health"
	"github.com/chg95211/msx-ethernet-audio/internal/httpapi"
	"github.com/chg95211/msx-ethernet-audio/internal/session"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	mode       int
	verbose    bool
	httpAddr   string
	grpcAddr   string

	device       string
	port         int
	multicast    string
	iface        string
	destinations []string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "etheraudio",
		Short:         "Stream raw audio over UDP between hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.IntVarP(&a.mode, "mode", "m", 0, "audio mode (1: 8kHz mono mu-law, 2: 16kHz mono, 3: 22.05kHz stereo)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&a.httpAddr, "http", "", "serve status, metrics and push-to-talk on this address")
	pf.StringVar(&a.grpcAddr, "grpc", "", "serve gRPC health checks on this address")

	root.AddCommand(
		newPlayCmd(a),
		newSendCmd(a),
		newPTTCmd(a),
		newRecordCmd(a),
		newDevicesCmd(a),
	)
	return root
}

// setup loads .env, the config file and environment, then applies any flag
// the user set explicitly.
func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	fl := cmd.Flags()
	if fl.Changed("mode") {
		cfg.Mode = a.mode
	}
	if fl.Changed("verbose") {
		cfg.Verbose = a.verbose
	}
	if fl.Changed("http") {
		cfg.HTTPAddr = a.httpAddr
	}
	if fl.Changed("grpc") {
		cfg.GRPCAddr = a.grpcAddr
	}
	if fl.Changed("device") {
		cfg.Device = a.device
	}
	if fl.Changed("port") {
		cfg.Port = a.port
	}
	if fl.Changed("multicast") {
		cfg.MulticastGroup = a.multicast
	}
	if fl.Changed("iface") {
		cfg.Interface = a.iface
	}
	if fl.Changed("dest") {
		cfg.Destinations = a.destinations
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// run executes s alongside the optional status servers. The servers stop
// when the session ends.
func (a *app) run(ctx context.Context, s *session.Session, ptt *capture.Switch) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := session.NewRegistry()
	reg.Add(s)

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.GRPCAddr != "" {
		hs := health.NewServer(a.cfg.GRPCAddr, a.logger)
		s.OnChange(hs.Observe)
		g.Go(func() error { return hs.Run(gctx) })
	}
	if a.cfg.HTTPAddr != "" {
		h := httpapi.NewHandlers(reg, ptt, a.logger)
		srv := httpapi.NewServer(a.cfg.HTTPAddr, httpapi.NewRouter(h, a.cfg.APIToken, a.logger), a.logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return s.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("exiting", zap.Error(err))
		return err
	}
	return nil
}
