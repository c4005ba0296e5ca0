// Command gimbal-ctl drives a running gimbal daemon over its operator API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/teslashibe/go-gimbal/internal/config"
	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/remote"
)

const usage = `Usage: gimbal-ctl [flags] <command>

Commands:
  status                 Show gimbal and tracking status
  track on|off           Switch tracking mode
  fire                   Fire the laser
  center                 Recenter (manual mode only)
  jog <x> <y> <duration> Hold the joystick, e.g. jog 0.5 0 1s
  ports                  List local serial ports

Flags:
`

func main() {
	addr := flag.String("addr", "http://localhost:"+config.HTTPPort(config.DefaultHTTPPort), "Daemon address")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := remote.New(*addr)
	client.HTTP.Timeout = *timeout

	if err := run(ctx, client, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *remote.Client, args []string) error {
	switch args[0] {
	case "status":
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil

	case "track":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return errors.New("usage: track on|off")
		}
		st, err := c.SetTracking(ctx, args[1] == "on")
		if err != nil {
			return err
		}
		fmt.Printf("🎯 Tracking: %v\n", st.Tracking)
		return nil

	case "fire":
		if err := c.Fire(ctx); err != nil {
			if errors.Is(err, gimbal.ErrLaserBusy) {
				return errors.New("laser still firing, try again in a moment")
			}
			return err
		}
		fmt.Println("🔥 Laser fired")
		return nil

	case "center":
		st, err := c.Recenter(ctx)
		if err != nil {
			if errors.Is(err, gimbal.ErrTrackingActive) {
				return errors.New("tracking is on; run 'track off' first")
			}
			return err
		}
		fmt.Printf("🎯 Centered at pan=%.0f° tilt=%.0f°\n", st.Pose.Pan, st.Pose.Tilt)
		return nil

	case "jog":
		if len(args) != 4 {
			return errors.New("usage: jog <x> <y> <duration>")
		}
		x, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("x: %w", err)
		}
		y, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("y: %w", err)
		}
		d, err := time.ParseDuration(args[3])
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		return jog(ctx, c, x, y, d)

	case "ports":
		ports, err := gimbal.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// jog streams a held joystick for d, then releases it
func jog(ctx context.Context, c *remote.Client, x, y float64, d time.Duration) error {
	js, err := c.OpenJoystick(ctx)
	if err != nil {
		return err
	}
	defer js.Close()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(d)

	fmt.Printf("🕹️  Jogging x=%.2f y=%.2f for %v\n", x, y, d)
	for {
		if err := js.Send(x, y, true); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			st, err := c.Status(ctx)
			if err == nil {
				fmt.Printf("🎯 Now at pan=%.1f° tilt=%.1f°\n", st.Gimbal.Pose.Pan, st.Gimbal.Pose.Tilt)
			}
			return nil
		case err := <-js.Errors():
			return err
		case <-js.Done():
			return errors.New("connection closed by daemon")
		case <-ticker.C:
		}
	}
}

func printStatus(st remote.Status) {
	g := st.Gimbal
	mode := "manual"
	if g.Tracking {
		mode = "tracking"
	}

	fmt.Printf("🎯 Gimbal %s\n", g.SessionID)
	fmt.Printf("   Mode:    %s\n", mode)
	fmt.Printf("   Pose:    pan=%.1f° tilt=%.1f°\n", g.Pose.Pan, g.Pose.Tilt)
	fmt.Printf("   Trigger: %s (laser busy: %v)\n", g.Trigger, g.LaserBusy)
	fmt.Printf("   Ticks:   %d (%d write errors)\n", g.Ticks, g.WriteErrors)
	if g.LastEcho != nil {
		fmt.Printf("   Echo:    P=%d T=%d Trigger=%d\n", g.LastEcho.Pan, g.LastEcho.Tilt, g.LastEcho.Trigger)
	}

	if t := st.Tracking; t != nil {
		fmt.Printf("👁️  Tracking: %.1f fps\n", t.FPS)
		if t.TargetDistance != nil {
			fmt.Printf("   Target:  %.1fpx from center (stable %d, counter %d)\n",
				*t.TargetDistance, t.StableFrames, t.TriggerCounter)
		} else {
			fmt.Println("   Target:  not detected")
		}
		if t.Locked {
			fmt.Println("   🔒 LOCKED")
		}
	}
	if cam := st.Camera; cam != nil {
		fmt.Printf("📷 Camera: %dx%d @ %d fps\n", cam.Width, cam.Height, cam.Framerate)
	}
}
