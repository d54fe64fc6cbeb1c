package main

import (
	"fmt"
	"strconv"

	"github.com/leandrodaf/stagewire/internal/config"
	"github.com/leandrodaf/stagewire/sdk/codec"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/leandrodaf/stagewire/sdk/midi"
	"github.com/spf13/cobra"
)

var (
	cueList   string
	cuePath   string
	mscFormat string
	deviceID  int
	portName  string
)

var mscCmd = &cobra.Command{
	Use:   "msc <command> [cue]",
	Short: "Send one MIDI Show Control command",
	Example: `  stagewire msc go 12.5 --list 2
  stagewire msc all_off --format 0x7f`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := codec.ParseMSCCommand(args[0])
		if err != nil {
			return err
		}
		format, err := strconv.ParseUint(mscFormat, 0, 7)
		if err != nil {
			return fmt.Errorf("invalid --format %q: %w", mscFormat, err)
		}

		msg := contracts.MSCCommand{
			DeviceID: targetDevice(),
			Format:   codec.CommandFormat(format),
			Command:  command,
		}
		if len(args) == 2 {
			msg.Cue = &contracts.CueID{Number: args[1], List: cueList, Path: cuePath}
		}

		return withOutput(func(out contracts.OutputChannel) error {
			return out.SendMSCCommand(msg)
		})
	},
}

var mmcCmd = &cobra.Command{
	Use:   "mmc <command>",
	Short: "Send one MIDI Machine Control command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := codec.ParseMMCCommand(args[0])
		if err != nil {
			return err
		}
		return withOutput(func(out contracts.OutputChannel) error {
			return out.SendMMC(targetDevice(), command)
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <milliseconds>",
	Short: "Send an MMC locate to an absolute time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ms, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", args[0], err)
		}
		return withOutput(func(out contracts.OutputChannel) error {
			return out.SendMMCGoto(targetDevice(), uint32(ms))
		})
	},
}

func targetDevice() codec.DeviceID {
	if deviceID >= 0 {
		return codec.DeviceID(deviceID)
	}
	return codec.DeviceID(cfg.Output.DeviceID)
}

// withOutput resolves --port through the patch and hands the output to send.
func withOutput(send func(contracts.OutputChannel) error) error {
	patch := midi.NewPatch(cfg.PatchPorts(),
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
	)
	defer patch.CloseAll()

	out, err := patch.MIDIOutput(portName)
	if err != nil {
		return err
	}
	return send(out)
}

func init() {
	mscCmd.Flags().StringVar(&cueList, "list", "", "cue list (defaults to output.cue_list)")
	mscCmd.Flags().StringVar(&cuePath, "path", "", "cue path (defaults to output.cue_path)")
	mscCmd.Flags().StringVar(&mscFormat, "format", "0x01", "command format byte")
	for _, c := range []*cobra.Command{mscCmd, mmcCmd} {
		c.PersistentFlags().IntVar(&deviceID, "device", -1, "target device id (defaults to output.device_id)")
		c.PersistentFlags().StringVar(&portName, "port", config.DefaultPort, "patched port to send through")
	}
	mmcCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(mscCmd, mmcCmd)
}
