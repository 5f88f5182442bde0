// Command localmic drives the call pipeline against the local
// microphone and speakers instead of a telephony switch: a net.Pipe
// stands in for the TCP connection, framed exactly like a real
// AudioSocket session, so the same Connection/Pipeline/Machine code a
// real call runs through is exercised end to end from a terminal.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/payphoned/internal/audiosocket"
	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/pipeline"
	"github.com/lokutor-ai/payphoned/internal/prompts"
	"github.com/lokutor-ai/payphoned/internal/providersetup"
	"github.com/lokutor-ai/payphoned/internal/session"
	"github.com/lokutor-ai/payphoned/internal/statemachine"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
	"github.com/lokutor-ai/payphoned/internal/vad"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Error: invalid configuration: %v", err)
	}
	if settings.PromptsOverlayPath != "" {
		if err := prompts.LoadOverlay(settings.PromptsOverlayPath); err != nil {
			log.Fatalf("Error: failed to load prompts overlay %s: %v", settings.PromptsOverlayPath, err)
		}
	}

	logger := telemetry.NewStdLogger()
	metrics := telemetry.New()

	newProviders, err := providersetup.Build(settings)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	sttProvider, llmProvider, ttsProvider := newProviders()

	vadPool := vad.NewPool(1)

	switchSide, deviceSide := net.Pipe()
	defer deviceSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := audiosocket.NewConnection(switchSide, logger, func() {
		logger.Warn("localmic: audio queue full, dropping chunk")
	}, func() {
		logger.Warn("localmic: dtmf queue full, dropping digit")
	})
	defer conn.Close()

	sess := session.New(uuid.NewString(), settings)
	pipe := pipeline.New(conn, sess, settings, vadPool, sttProvider, llmProvider, ttsProvider, logger, metrics)
	machine := statemachine.New(conn, sess, pipe, settings, logger, metrics)

	callDone := make(chan struct{})
	go func() {
		defer close(callDone)
		if err := machine.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("localmic: call ended with error", "err", err)
		}
	}()

	if err := audiosocket.WriteFrame(deviceSide, audiosocket.TypeUUID, []byte(uuid.NewString())); err != nil {
		log.Fatalf("Error: failed to send opening uuid frame: %v", err)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	var playbackMu sync.Mutex
	var playbackBytes []byte

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			_ = audiosocket.WriteAudio(deviceSide, pInput)
		}
		if pOutput != nil {
			playbackMu.Lock()
			n := copy(pOutput, playbackBytes)
			playbackBytes = playbackBytes[n:]
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
			playbackMu.Unlock()
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(settings.Audio.InputSampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	go func() {
		for {
			frame, err := audiosocket.ReadFrame(deviceSide)
			if err != nil {
				return
			}
			switch frame.Type {
			case audiosocket.TypeAudio:
				playbackMu.Lock()
				playbackBytes = append(playbackBytes, frame.Payload...)
				playbackMu.Unlock()
			case audiosocket.TypeHangup:
				fmt.Println("\nCall ended by the assistant. Press Ctrl+C to exit.")
				return
			}
		}
	}()

	fmt.Println("AI Payphone local session started. Listening to microphone...")
	fmt.Println("Press Ctrl+C to exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-callDone:
	}
	fmt.Println("\nShutting down...")
	cancel()
}
