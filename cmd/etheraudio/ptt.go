package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/capture"
	"github.com/chg95211/msx-ethernet-audio/internal/device"
	"github.com/chg95211/msx-ethernet-audio/internal/device/portaudio"
	"github.com/chg95211/msx-ethernet-audio/internal/session"
)

// Push-to-talk control modes.
const (
	controlTerminal = "terminal"
	controlHTTP     = "http"
	controlOpen     = "open"
)

func newPTTCmd(a *app) *cobra.Command {
	var (
		input   string
		tone    float64
		control string
	)
	cmd := &cobra.Command{
		Use:   "ptt",
		Short: "Capture live audio and send it while push-to-talk is held",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateSend(); err != nil {
				return err
			}
			switch control {
			case controlTerminal:
				if input == "-" {
					return fmt.Errorf("--control terminal reads stdin, it cannot also be the audio input")
				}
			case controlHTTP:
				if a.cfg.HTTPAddr == "" {
					return fmt.Errorf("--control http needs --http")
				}
			case controlOpen:
			default:
				return fmt.Errorf("unknown push-to-talk control %q", control)
			}
			f, err := a.cfg.Format()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			src, closeSrc, err := a.openSource(ctx, f, input, tone)
			if err != nil {
				return err
			}
			defer closeSrc()

			fan, closeFan, err := a.openFanout(f)
			if err != nil {
				return err
			}
			defer closeFan()

			var (
				sw   *capture.Switch
				gate capture.Gate = capture.AlwaysOpen
			)
			if control != controlOpen {
				sw = &capture.Switch{}
				gate = sw
			}

			s, err := session.NewLiveSend(session.LiveSendOptions{
				Format: f,
				Source: src,
				Gate:   gate,
				Fanout: fan,
				Logger: a.logger,
			})
			if err != nil {
				return err
			}

			if control == controlTerminal {
				fmt.Fprintln(cmd.ErrOrStderr(), "press Enter to toggle talking, q to quit")
				go capture.RunTerminal(ctx, os.Stdin, sw, cancel, a.logger)
			}
			return a.run(ctx, s, sw)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&a.device, "device", "i", "", "input device name")
	fl.StringArrayVarP(&a.destinations, "dest", "d", nil, "destination host:port, repeatable")
	fl.StringVar(&input, "input", "", `capture from a raw file instead of a device ("-" for stdin)`)
	fl.Float64Var(&tone, "tone", 0, "capture a generated sine tone at this frequency in Hz")
	fl.StringVar(&control, "control", controlTerminal, "push-to-talk control: terminal, http or open")
	return cmd
}

// openSource picks the capture source: a file or stdin, a generated tone,
// otherwise the configured PortAudio device.
func (a *app) openSource(ctx context.Context, f audio.Format, input string, tone float64) (audio.Source, func(), error) {
	switch {
	case input == "-":
		return device.NewReaderSource(os.Stdin), func() {}, nil
	case input != "":
		in, err := os.Open(input)
		if err != nil {
			return nil, nil, fmt.Errorf("open input: %w", err)
		}
		return device.NewReaderSource(in), func() { in.Close() }, nil
	case tone > 0:
		return device.NewToneSource(ctx, f, tone), func() {}, nil
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, nil, err
	}
	dev, err := portaudio.OpenInput(a.cfg.Device, f, a.logger)
	if err != nil {
		portaudio.Terminate()
		return nil, nil, err
	}
	return dev, func() {
		if err := dev.Close(); err != nil {
			a.logger.Warn("close input device", zap.Error(err))
		}
		portaudio.Terminate()
	}, nil
}
