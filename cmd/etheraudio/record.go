package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chg95211/msx-ethernet-audio/internal/session"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

func newRecordCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Dump every received datagram as a hex listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			f, err := a.cfg.Format()
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				bw := bufio.NewWriter(file)
				defer bw.Flush()
				out = bw
			}

			conn, err := transport.Listen(transport.ListenConfig{
				Port:           a.cfg.Port,
				MulticastGroup: a.cfg.MulticastGroup,
				Interface:      a.cfg.Interface,
			})
			if err != nil {
				return err
			}
			s := session.NewRecord(session.RecordOptions{
				Format: f,
				Conn:   conn,
				Out:    out,
				Logger: a.logger,
			})
			return a.run(cmd.Context(), s, nil)
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&a.port, "port", "p", 0, "UDP port to listen on")
	fl.StringVar(&a.multicast, "multicast", "", "multicast group to join")
	fl.StringVar(&a.iface, "iface", "", "interface for the multicast join")
	fl.StringVarP(&output, "output", "o", "", `write the listing to a file ("-" for stdout)`)
	return cmd
}
