package afsk

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

/*-------------------------------------------------------------------
 *
 * Name:	ListDevicesMain
 *
 * Purpose:	Useful utility to list audio devices, and to check
 *		the PTT wiring.
 *
 * Description:	With no options, print every device PortAudio knows
 *		about.  The index or the start of the name can be used
 *		for audio.device in the configuration.
 *
 *		With a PTT method, PTT is keyed and unkeyed once per
 *		second until interrupted.
 *
 *------------------------------------------------------------------*/

func ListDevicesMain() {
	var pttMethod = pflag.StringP("ptt", "P", "", "Test this PTT method: serial-rts, serial-dtr, gpiod.")
	var pttDevice = pflag.StringP("ptt-device", "p", "", "Serial port or GPIO chip for PTT.")
	var pttLine = pflag.Int("ptt-line", 0, "GPIO line offset for PTT.")
	var pttInvert = pflag.Bool("ptt-invert", false, "Invert the PTT signal.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - List audio devices, or test PTT.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  %s -P gpiod -p gpiochip0 --ptt-line 17\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "    The PTT state should change once per second.\n")
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *version {
		printVersion("afsk-devices", false)
		return
	}

	if *pttMethod != "" {
		var cfg = PTTConfig{Method: *pttMethod, Device: *pttDevice, Line: *pttLine, Invert: *pttInvert}

		if err := pttTest(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}

		return
	}

	var devices, err = ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	printDevices(devices)
}

func printDevices(devices []DeviceInfo) {
	fmt.Printf("  #  in out   rate  host api     name\n")
	fmt.Printf("---  -- ---  -----  -----------  ----\n")

	for _, d := range devices {
		fmt.Printf("%3d  %2d %3d  %5.0f  %-11s  %s\n",
			d.Index, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, d.HostAPI, d.Name)
	}
}

func pttTest(cfg PTTConfig) error {
	var ptt, err = OpenPTT(cfg)
	if err != nil {
		return err
	}
	defer ptt.Close() //nolint:errcheck

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	var ticker = time.NewTicker(time.Second)
	defer ticker.Stop()

	var on = false

	for {
		select {
		case <-ctx.Done():
			return ptt.Set(false)
		case <-ticker.C:
			on = !on
			fmt.Printf("PTT %v\n", map[bool]string{true: "on", false: "off"}[on])

			if err := ptt.Set(on); err != nil {
				return err
			}
		}
	}
}
