// File: cmd/sctp-server/main.go
// Package main
// Multi-homed SCTP echo server: every message is logged with its header and
// sent back on the stream and ppid it arrived on.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/momentics/hioload-sctp/api"
	"github.com/momentics/hioload-sctp/control"
	"github.com/momentics/hioload-sctp/facade"
	"github.com/momentics/hioload-sctp/sctp"
	"github.com/momentics/hioload-sctp/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sctp-server:", err)
		os.Exit(1)
	}
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("sctp-server", pflag.ContinueOnError)
	fs.String("address", "0.0.0.0", "primary listen address")
	fs.Uint16("port", server.DefaultPort, "listen port")
	fs.StringSlice("bind-extra", nil, "additional local addresses for multi-homing")
	fs.Int("backlog", 128, "listen backlog")
	fs.Int("min-message-size", api.HeaderSize, "shortest message passed to the handler")
	fs.Int("reactor-cpu", -1, "pin the reactor goroutine to this CPU; -1 leaves it unpinned")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "console", "console or json")
	return fs
}

// configFrom reads the bound flags into a server config.
func configFrom(v *viper.Viper) (*server.Config, error) {
	cfg := server.DefaultConfig()
	addr, err := netip.ParseAddr(v.GetString("address"))
	if err != nil {
		return nil, fmt.Errorf("--address: %w", err)
	}
	cfg.Address = addr
	cfg.Port = uint16(v.GetUint("port"))
	cfg.Backlog = v.GetInt("backlog")
	cfg.MinMessageSize = v.GetInt("min-message-size")
	for _, s := range v.GetStringSlice("bind-extra") {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("--bind-extra %q: %w", s, err)
		}
		cfg.ExtraAddresses = append(cfg.ExtraAddresses, a)
	}
	return cfg, cfg.Validate()
}

func run(args []string) error {
	fs := newFlags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	log, err := control.NewLogger(v.GetString("log-level"), v.GetString("log-format"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := configFrom(v)
	if err != nil {
		return err
	}

	var live sync.Map // uuid -> *sctp.Association
	rt, err := facade.New(cfg, echo(log),
		facade.WithLogger(log),
		facade.WithReactorCPU(v.GetInt("reactor-cpu")),
		facade.WithServerOptions(
			server.WithAssociationHandler(func(a *sctp.Association) {
				live.Store(a.ID(), a)
				log.Info("association accepted",
					zap.String("assoc_id", a.ID().String()),
					zap.Stringer("peer", a.Peer()))
			}),
			server.WithCloseHandler(func(a *sctp.Association) { live.Delete(a.ID()) }),
		),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rt.Start(ctx); err != nil {
		return err
	}

	dump := make(chan os.Signal, 1)
	notifyDump(dump)
	defer signal.Stop(dump)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-dump:
			log.Info("state",
				zap.Any("probes", rt.Probes().DumpState()),
				zap.Any("metrics", rt.Metrics().GetSnapshot()))
		}
	}

	log.Info("shutting down")
	err = rt.Stop()
	live.Range(func(_, value any) bool {
		_ = value.(*sctp.Association).Close()
		return true
	})
	return err
}

// echo logs the header of every message and sends the payload back.
func echo(log *zap.Logger) sctp.MessageHandler {
	return sctp.HandlerFunc(func(a *sctp.Association, m api.Message) {
		hdr, err := m.Header()
		if err != nil {
			log.Debug("headerless message", zap.Int("len", len(m.Data)))
		} else {
			log.Debug("message",
				zap.String("assoc_id", a.ID().String()),
				zap.Uint16("stream", m.Stream),
				zap.Uint32("ppid", m.PPID),
				zap.Uint8("version", hdr.Version),
				zap.Uint8("class", hdr.Class),
				zap.Uint8("type", hdr.Type))
		}
		if err := a.Send(m.Data, m.Stream, m.PPID); err != nil {
			log.Warn("echo failed", zap.String("assoc_id", a.ID().String()), zap.Error(err))
		}
	})
}
