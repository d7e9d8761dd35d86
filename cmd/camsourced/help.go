package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagConfig      string
	flagInput       string
	flagWidth       int
	flagHeight      int
	flagRotation    int
	flagFacing      string
	flagOrientation int
	flagBuffers     int
	flagOutput      string
	flagListen      string
	flagHelp        bool
	flagVersion     bool
)

func init() {
	flag.StringVarP(&flagConfig, "config", "c", "", "Configuration file")
	flag.StringVarP(&flagInput, "input", "i", "", "Video device (default: scan /dev/video*)")
	flag.IntVarP(&flagWidth, "width", "x", 1280, "Video width")
	flag.IntVarP(&flagHeight, "height", "y", 720, "Video height")
	flag.IntVarP(&flagRotation, "rotation", "r", 0, "Device rotation, in degrees")
	flag.StringVarP(&flagFacing, "facing", "", "back", "Camera facing (front or back)")
	flag.IntVarP(&flagOrientation, "orientation", "", 0, "Camera mount orientation, in degrees")
	flag.IntVarP(&flagBuffers, "buffers", "", 3, "Number of frame buffers")
	flag.StringVarP(&flagOutput, "output", "o", "", "Write raw NV21 frames to file")
	flag.StringVarP(&flagListen, "listen", "l", "", "Serve websocket preview on address")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Camera video source daemon

Usage: camsourced [OPTION]...

Configuration:
  -c, --config=FILE      YAML configuration file; options below override it

Video source:
  -i, --input=FILE       Video device (default: first capture device found)
  -x, --width=NUM        Set video width (default: 1280)
  -y, --height=NUM       Set video height (default: 720)
      --buffers=NUM      Number of frame buffers (default: 3)
      --facing=DIR       Camera facing, front or back (default: back)
      --orientation=DEG  Camera mount orientation (default: 0)
  -r, --rotation=DEG     Device rotation (default: 0)

Output:
  -o, --output=FILE      Write raw NV21 frames to FILE
  -l, --listen=ADDR      Serve a websocket frame preview on ADDR (e.g. :8000)

Miscellaneous:
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

Log levels are set with LOGLEVEL, e.g. LOGLEVEL=info,v4l2=debug

Please report bugs to: aloha@lanikailabs.com`

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	//                                                        _
	//   ___  __ _  _ __ ___   ___   ___   _   _  _ __  ___ | | ___
	//  / __|/ _` || '_ ` _ \ / __| / _ \ | | | || '__|/ __|| |/ _ \
	// | (__| (_| || | | | | |\__ \| (_) || |_| || |  | (__ |_|  __/
	//  \___|\__,_||_| |_| |_||___/ \___/  \__,_||_|   \___|   \___|

	// Line 1
	r.Printf("      ")
	y.Printf("       ")
	b.Printf("              ")
	r.Printf("      ")
	y.Println("       ")

	// Line 2
	r.Printf("   ___ ")
	y.Printf(" __ _ ")
	b.Printf(" _ __ ___  ")
	r.Printf(" ___ ")
	y.Println(" ___  _   _  _ __  ___  ___")

	// Line 3
	r.Printf("  / __|")
	y.Printf("/ _` |")
	b.Printf("| '_ ` _ \\ ")
	r.Printf("/ __|")
	y.Println("/ _ \\| | | || '__|/ __|/ _ \\")

	// Line 4
	r.Printf(" | (__ ")
	y.Printf("| (_| |")
	b.Printf("| | | | | |")
	r.Printf("\\__ \\")
	y.Println("| (_) | |_| || |  | (__|  __/")

	// Line 5
	r.Printf("  \\___|")
	y.Printf("\\__,_|")
	b.Printf("|_| |_| |_|")
	r.Printf("|___/")
	y.Println("\\___/ \\__,_||_|   \\___|\\___|")

	fmt.Println(helpString)
}
