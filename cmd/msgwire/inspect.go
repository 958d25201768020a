package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/msgwire/hexcodec"
	"github.com/wippyai/msgwire/wire"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [hex|-]",
		Short: "Print the field tree of a hex packet and the message it carries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 && args[0] != "-" {
				text = args[0]
			} else {
				data, err := readInput(cmd, nil)
				if err != nil {
					return err
				}
				text = string(data)
			}

			b, err := hexcodec.FromHex(strings.TrimSpace(text))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := wire.Dump(out, b); err != nil {
				return err
			}

			m, err := wire.Decode(b)
			if err != nil {
				a.logger.Debug("not a message packet", zap.Error(err))
				_, err = fmt.Fprintf(out, "\nnot a message packet: %v\n", err)
				return err
			}
			js, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "\nmessage:\n%s\n", js)
			return err
		},
	}
}
