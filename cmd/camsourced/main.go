package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/lanikai/camsource/internal/capture"
	"github.com/lanikai/camsource/internal/config"
	"github.com/lanikai/camsource/internal/logging"
	"github.com/lanikai/camsource/internal/sink"
	"github.com/lanikai/camsource/internal/v4l2"
)

// Populated via -ldflags="-X ...".
var GitRevisionId string

var log = logging.DefaultLogger.WithTag("camsourced")

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("camsourced", GitRevisionId)
	fmt.Println("Copyright 2019 Lanikai Labs LLC. All rights reserved.")
}

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.LogLevel != "" {
		if err := logging.Configure(cfg.LogLevel); err != nil {
			log.Fatalf("log_level: %v", err)
		}
	}
	log.Debug("configuration:\n%s", cfg)

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

// Start from the configuration file, if any, then apply explicit flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		var err error
		if cfg, err = config.Load(flagConfig); err != nil {
			return nil, err
		}
	}

	changed := flag.CommandLine.Changed
	if changed("width") {
		cfg.Capture.Width = flagWidth
	}
	if changed("height") {
		cfg.Capture.Height = flagHeight
	}
	if changed("rotation") {
		cfg.Capture.Rotation = flagRotation
	}
	if changed("buffers") {
		cfg.Capture.Buffers = flagBuffers
	}
	if changed("input") {
		cfg.Devices = []config.DeviceConfig{{
			Path:        flagInput,
			Facing:      flagFacing,
			Orientation: flagOrientation,
		}}
	} else if changed("facing") || changed("orientation") {
		return nil, errors.New("--facing and --orientation require --input")
	}
	if changed("output") {
		cfg.Output.File = flagOutput
	}
	if changed("listen") {
		cfg.Preview.Listen = flagListen
	}

	return cfg, cfg.Validate()
}

func run(cfg *config.Config) error {
	var encoders sink.Tee

	if cfg.Output.File != "" {
		fs, err := sink.NewFileSink(cfg.Output.File)
		if err != nil {
			return err
		}
		defer fs.Close()
		encoders = append(encoders, fs)
	}

	var preview *sink.Broadcaster
	if cfg.Preview.Listen != "" {
		preview = sink.NewBroadcaster()
		defer preview.Close()
		encoders = append(encoders, preview)
	}

	if len(encoders) == 0 {
		log.Warn("no output configured; frames will be captured and discarded")
	}

	paths, _ := config.ParsePaths(cfg.Capture.Paths)
	session, err := capture.NewSession(capture.Config{
		Width:      cfg.Capture.Width,
		Height:     cfg.Capture.Height,
		MinFPS:     cfg.Capture.MinFPS,
		MaxFPS:     cfg.Capture.MaxFPS,
		NumBuffers: cfg.Capture.Buffers,
		Paths:      paths,
		ZeroCopy:   cfg.Capture.ZeroCopy,
		Cameras:    v4l2.NewEnumerator(cfg.V4L2Devices()),
		Rotation:   capture.FixedRotation(cfg.Capture.Rotation),
		Encoder:    encoders,
	})
	if err != nil {
		return err
	}

	if err := session.Open(); err != nil {
		return err
	}
	defer session.Close()

	if err := session.Start(); err != nil {
		return err
	}

	var server *http.Server
	if preview != nil {
		params, _ := session.Negotiated()
		mux := http.NewServeMux()
		mux.Handle(cfg.Preview.Path, &sink.WebsocketHandler{
			Source: preview,
			Width:  params.Width,
			Height: params.Height,
		})
		server = &http.Server{
			Addr:     cfg.Preview.Listen,
			Handler:  mux,
			ErrorLog: log.StdLogger(logging.Warn),
		}
		go func() {
			log.Info("Serving preview on ws://%s%s", cfg.Preview.Listen, cfg.Preview.Path)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("preview server: %v", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	log.Info("Capturing; interrupt to stop")
	log.Info("Received %v, shutting down", <-sig)
	signal.Stop(sig)

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		server.Shutdown(ctx)
		cancel()
	}

	if err := session.Stop(); err != nil {
		log.Warn("%v", err)
	}
	stats := session.Stats()
	log.Info("raw frames: %d delivered, %d dropped, %d encoder errors",
		stats.RawDelivered, stats.RawDropped, stats.EncoderErrors)
	if preview != nil {
		log.Info("preview frames dropped on slow clients: %d", preview.Dropped())
	}
	return nil
}
