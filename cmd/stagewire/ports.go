package main

import (
	"context"
	"fmt"
	"time"

	"github.com/leandrodaf/stagewire/internal/dmx"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/leandrodaf/stagewire/sdk/midi"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI outputs, serial ports and DMX devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		for _, driver := range []contracts.OutputDriver{contracts.DriverGoMIDI, contracts.DriverNative, contracts.DriverSerial} {
			fmt.Fprintf(out, "%s:\n", driver)
			infos, err := midi.ListOutputs(driver)
			if err != nil {
				fmt.Fprintf(out, "  (%v)\n", err)
				continue
			}
			for _, info := range infos {
				fmt.Fprintf(out, "  %-32s %s\n", info.Name, info.NativeID)
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		classes := []dmx.DeviceClass{cfg.ArtNetClass()}
		if cfg.DMX.Enttec.Enabled {
			classes = append(classes, &dmx.EnttecClass{})
		}
		fmt.Fprintln(out, "dmx:")
		for _, class := range classes {
			descs, err := class.Discover(ctx)
			if err != nil {
				fmt.Fprintf(out, "  %s: (%v)\n", class.Name(), err)
				continue
			}
			for _, d := range descs {
				fmt.Fprintf(out, "  %-32s %s\n", d.ID(), d.Name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
