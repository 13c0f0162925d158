package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/config"
	"github.com/chg95211/msx-ethernet-audio/internal/session"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

func newSendCmd(a *app) *cobra.Command {
	var ulaw, loop, continueOnError bool
	cmd := &cobra.Command{
		Use:   "send FILE...",
		Short: "Send raw audio files to every destination at the format's real-time rate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			fl := cmd.Flags()
			if fl.Changed("ulaw") {
				a.cfg.Send.ULaw = ulaw
			}
			if fl.Changed("loop") {
				a.cfg.Send.Loop = loop
			}
			if fl.Changed("continue-on-error") {
				a.cfg.Send.ContinueOnError = continueOnError
			}
			if err := a.cfg.ValidateSend(); err != nil {
				return err
			}
			f, err := a.cfg.Format()
			if err != nil {
				return err
			}

			fan, closeFan, err := a.openFanout(f)
			if err != nil {
				return err
			}
			defer closeFan()

			s, err := session.NewFileSend(session.FileSendOptions{
				Format: f,
				Files:  files,
				Loop:   a.cfg.Send.Loop,
				ULaw:   a.cfg.Send.ULaw,
				Fanout: fan,
				Pacing: a.cfg.PacingFor(f),
				Logger: a.logger,
			})
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), s, nil)
		},
	}

	fl := cmd.Flags()
	fl.StringArrayVarP(&a.destinations, "dest", "d", nil, "destination host:port, repeatable")
	fl.BoolVar(&ulaw, "ulaw", false, "input is signed 16-bit PCM, encode to mu-law before sending")
	fl.BoolVar(&loop, "loop", false, "repeat the file list until interrupted")
	fl.BoolVar(&continueOnError, "continue-on-error", false, "keep sending to other destinations when one fails")
	return cmd
}

// openFanout resolves the configured destinations and opens the send socket.
func (a *app) openFanout(f audio.Format) (*transport.Fanout, func(), error) {
	dests, err := transport.ResolveDestinations(a.cfg.Destinations)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	conn, err := transport.ListenSender()
	if err != nil {
		return nil, nil, err
	}
	fan, err := transport.NewFanout(conn, dests, f.PacketSize, transport.FanoutOptions{
		ContinueOnError: a.cfg.Send.ContinueOnError,
	}, a.logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return fan, func() { conn.Close() }, nil
}
