package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/msgwire"
	"github.com/wippyai/msgwire/message"
)

func newEncodeCmd(a *app) *cobra.Command {
	var random bool

	cmd := &cobra.Command{
		Use:   "encode [file|-]",
		Short: "Encode a JSON or YAML message document and print its hex packet",
		Example: `  msgwire encode message.json
  cat message.yaml | msgwire encode --random
  msgwire encode --module encoder.wasm message.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var opts []message.ParseOption
			if random {
				opts = append(opts, message.FillRandom(nil))
			}
			m, err := message.Parse(data, opts...)
			if err != nil {
				return err
			}

			enc, release, err := a.encoder(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer release()

			out, err := msgwire.EncodeHex(cmd.Context(), enc, m)
			if err != nil {
				return err
			}
			a.logger.Debug("encoded",
				zap.String("engine", a.cfg.Engine),
				zap.Int("elements", len(m.Elements)),
				zap.Int("bytes", len(out)/2),
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&random, "random", false, "fill sequence and nonce with random values")
	return cmd
}
