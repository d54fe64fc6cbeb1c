package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/stagewire/internal/logger"
	"github.com/leandrodaf/stagewire/sdk/codec"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"github.com/leandrodaf/stagewire/sdk/dmx"
	"github.com/leandrodaf/stagewire/sdk/midi"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

func main() {
	log := logger.NewZapLogger()

	devices, err := midi.ListOutputs(contracts.DriverGoMIDI)
	if err != nil || len(devices) == 0 {
		log.Error("No MIDI outputs found", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI outputs:", devices)

	out, err := midi.NewOutputChannel(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithOutputConfig(contracts.OutputConfig{
			Driver:         contracts.DriverGoMIDI,
			Port:           devices[0].Name,
			DefaultCueList: "1",
		}),
	)
	if err != nil {
		log.Error("Failed to open MIDI output", log.Field().Error("error", err))
		return
	}
	defer out.Close()

	if err := out.SendMSCCommand(contracts.MSCCommand{
		DeviceID: codec.AllCall,
		Format:   codec.FormatLighting,
		Command:  codec.MSCGo,
		Cue:      &contracts.CueID{Number: "1"},
	}); err != nil {
		log.Error("Failed to send MSC", log.Field().Error("error", err))
	}

	frames := dmx.NewFrameBuffer(1)
	ctrl, err := dmx.NewController(frames,
		contracts.WithLogger(log),
		contracts.WithDMXConfig(contracts.DMXConfig{RetransmitInterval: 25 * time.Millisecond}),
	)
	if err != nil {
		log.Error("Failed to create DMX controller", log.Field().Error("error", err))
		return
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	artnet := &dmx.ArtNetClass{Nodes: []dmx.ArtNetNode{{Name: "broadcast", Address: "255.255.255.255", Universes: 1}}}
	go dmx.RunDiscovery(ctx, ctrl, []dmx.DeviceClass{artnet}, contracts.WithLogger(log))

	fmt.Println("Fading channel 1 over Art-Net... Press Ctrl+C to exit.")
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for level := 0; ; level = (level + 1) % 256 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = frames.Set(0, 0, byte(level))
			ctrl.TransmitNow()
		}
	}
}
