// Command gimbal runs the pan/tilt gimbal daemon: serial dispatch loop,
// camera tracking and the operator API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/teslashibe/go-gimbal/internal/config"
	"github.com/teslashibe/go-gimbal/internal/log"
	"github.com/teslashibe/go-gimbal/pkg/camera"
	"github.com/teslashibe/go-gimbal/pkg/debug"
	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/protocol"
	"github.com/teslashibe/go-gimbal/pkg/tracking"
	"github.com/teslashibe/go-gimbal/pkg/tracking/detection"
	"github.com/teslashibe/go-gimbal/pkg/web"
)

func main() {
	// Command line flags
	serialPath := flag.String("serial", config.SerialPort(config.DefaultSerialPort), "Gimbal serial device (or set GIMBAL_SERIAL)")
	baud := flag.Int("baud", config.BaudRate(config.DefaultBaudRate), "Serial baud rate (or set GIMBAL_BAUD)")
	cameraDevice := flag.Int("camera", config.CameraDevice(config.DefaultCameraDevice), "Camera device index (or set GIMBAL_CAMERA)")
	cameraPreset := flag.String("camera-preset", camera.PresetDefault, "Camera preset: default, vga, hd, low, night")
	noCamera := flag.Bool("no-camera", false, "Run without a camera (manual control only)")
	trackingPreset := flag.String("tracking", "default", "Tracking preset: default, slow, aggressive")
	startTracking := flag.Bool("track", false, "Start in tracking mode")
	httpPort := flag.String("port", config.HTTPPort(config.DefaultHTTPPort), "Operator API port (or set GIMBAL_HTTP_PORT)")
	dryRun := flag.Bool("dry-run", false, "Do not open the serial port; frames are discarded")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugTracking := flag.Bool("debug-tracking", false, "Log every tracking cycle")
	flag.Parse()

	debug.Enabled = *debugFlag
	debug.Tracking = *debugTracking

	level := config.LogLevel()
	if *debugFlag {
		level = "debug"
	}
	log.Init(level)
	logger := log.Component("main")

	if *listPorts {
		ports, err := gimbal.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	fmt.Println("🎯 Gimbal Controller")
	if *dryRun {
		fmt.Println("   Serial: (dry run)")
	} else {
		fmt.Printf("   Serial: %s @ %d\n", *serialPath, *baud)
	}
	if *noCamera {
		fmt.Println("   Camera: disabled")
	} else {
		fmt.Printf("   Camera: /dev/video%d (%s)\n", *cameraDevice, *cameraPreset)
	}
	fmt.Printf("   API:    :%s\n", *httpPort)
	fmt.Println()

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serial port
	var port gimbal.Port
	if !*dryRun {
		p, err := gimbal.OpenSerial(*serialPath, gimbal.PortOptions{BaudRate: *baud})
		if err != nil {
			logger.Error("failed to open gimbal", "err", err)
			os.Exit(1)
		}
		port = p
		fmt.Println("✅ Gimbal serial connected")
	}

	// A nil port runs the dispatch loop without a sink
	ctrl := gimbal.NewController(port, gimbal.DefaultConfig())

	// Camera and tracking
	var (
		capture  *camera.Capture
		detector *detection.ColorDetector
		tracker  *tracking.Tracker
		cameras  *camera.Manager
		apiTrack web.Tracker
	)
	if !*noCamera {
		camCfg := camera.DefaultConfig()
		if preset := camera.GetPreset(*cameraPreset); preset != nil {
			camCfg = *preset
		} else {
			logger.Warn("unknown camera preset, using default", "preset", *cameraPreset)
		}
		camCfg.Device = *cameraDevice

		c, err := camera.Open(camCfg)
		if err != nil {
			logger.Error("failed to open camera", "err", err)
			if port != nil {
				port.Close()
			}
			os.Exit(1)
		}
		capture = c
		fmt.Println("📷 Camera opened")

		cameras = camera.NewManager(camCfg)
		cameras.OnConfigChange = capture.Apply

		detector = detection.NewColorDetector(detection.DefaultConfig())
		tracker = tracking.New(tracking.ConfigByName(*trackingPreset), capture, detector, ctrl)
		apiTrack = tracker
	}

	server := web.NewServer(":"+*httpPort, ctrl, apiTrack, cameras)
	if tracker != nil {
		tracker.SetFrameHook(server.HandleFrame)
	}

	if *startTracking && tracker != nil {
		ctrl.SetTracking(true)
	}

	// Start loops; any failure shuts the daemon down
	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(name+" stopped", "err", err)
				stop()
			}
		}()
	}

	run("dispatch", ctrl.Run)
	run("api", server.Run)
	if tracker != nil {
		run("tracker", tracker.Run)
	}
	if port != nil {
		firmware := log.Component("firmware")
		run("monitor", func(ctx context.Context) error {
			return gimbal.Monitor(ctx, port, firmware, func(e protocol.Echo) {
				ctrl.SetEcho(e)
			})
		})
	}

	fmt.Println("🚀 Running (Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Println("\n👋 Shutting down...")

	wg.Wait()

	// Loops are stopped; release devices
	if capture != nil {
		capture.Close()
	}
	if detector != nil {
		detector.Close()
	}
	if port != nil {
		port.Close()
	}

	fmt.Println("👋 Goodbye!")
}
