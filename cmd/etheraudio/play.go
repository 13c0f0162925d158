package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/device"
	"github.com/chg95211/msx-ethernet-audio/internal/device/portaudio"
	"github.com/chg95211/msx-ethernet-audio/internal/session"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

func newPlayCmd(a *app) *cobra.Command {
	var (
		file        string
		output      string
		startDelay  time.Duration
		fillPartial bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Receive a stream and play it, or play a local raw file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("start-delay") {
				a.cfg.Playback.StartDelay = startDelay
			}
			if cmd.Flags().Changed("fill-partial") {
				a.cfg.Playback.FillPartial = fillPartial
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			f, err := a.cfg.Format()
			if err != nil {
				return err
			}

			sink, closeSink, err := a.openSink(f, output)
			if err != nil {
				return err
			}
			defer closeSink()

			var s *session.Session
			if file != "" {
				s, err = session.NewLocalPlay(session.LocalPlayOptions{
					Format: f,
					File:   file,
					Sink:   sink,
					Logger: a.logger,
				})
			} else {
				conn, lerr := transport.Listen(transport.ListenConfig{
					Port:           a.cfg.Port,
					MulticastGroup: a.cfg.MulticastGroup,
					Interface:      a.cfg.Interface,
				})
				if lerr != nil {
					return lerr
				}
				s, err = session.NewReceive(session.ReceiveOptions{
					Format:       f,
					Conn:         conn,
					Sink:         sink,
					StartDelay:   a.cfg.Playback.StartDelay,
					PollInterval: a.cfg.Playback.PollInterval,
					FillPartial:  a.cfg.Playback.FillPartial,
					Logger:       a.logger,
				})
				if err != nil {
					conn.Close()
				}
			}
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), s, nil)
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&a.port, "port", "p", 0, "UDP port to listen on")
	fl.StringVarP(&a.device, "device", "i", "", "output device name")
	fl.StringVar(&a.multicast, "multicast", "", "multicast group to join")
	fl.StringVar(&a.iface, "iface", "", "interface for the multicast join")
	fl.StringVarP(&file, "file", "f", "", `play a raw file instead of the network ("-" for stdin)`)
	fl.StringVarP(&output, "output", "o", "", `write audio to a file instead of a device ("-" for stdout)`)
	fl.DurationVar(&startDelay, "start-delay", 0, "wait before the first fill, e.g. 200ms")
	fl.BoolVar(&fillPartial, "fill-partial", false, "play a partial period padded with silence on a stall")
	return cmd
}

// openSink returns the playback sink: a file or stdout when output is set,
// otherwise the configured PortAudio device.
func (a *app) openSink(f audio.Format, output string) (audio.Sink, func(), error) {
	switch output {
	case "":
	case "-":
		return device.NewWriterSink(os.Stdout), func() {}, nil
	default:
		out, err := os.Create(output)
		if err != nil {
			return nil, nil, fmt.Errorf("create output: %w", err)
		}
		return device.NewWriterSink(out), func() { out.Close() }, nil
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, nil, err
	}
	dev, err := portaudio.OpenOutput(a.cfg.Device, f, a.logger)
	if err != nil {
		portaudio.Terminate()
		return nil, nil, err
	}
	return dev, func() {
		if err := dev.Close(); err != nil {
			a.logger.Warn("close output device", zap.Error(err))
		}
		portaudio.Terminate()
	}, nil
}
