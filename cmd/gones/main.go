// Package main implements the gones NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gones/internal/app"
	"gones/internal/config"
	"gones/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file")
		configFile = flag.String("config", "", "Path to configuration file")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		nogui      = flag.Bool("nogui", false, "Run without a window (headless mode)")
		frames     = flag.Int("frames", 120, "Number of frames to run in headless mode")
		dumpFrames = flag.Bool("dump-frames", false, "Dump rendered frames as PNG files")
		dumpDir    = flag.String("dump-dir", "./debug_frames", "Directory for PNG frame dumps")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}
	if *showVer {
		version.PrintBuildInfo()
		return
	}

	setupGracefulShutdown()

	configPath := *configFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	application, err := app.New(configPath, *nogui)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("cleanup error: %v", err)
		}
	}()

	cfg := application.GetConfig()
	cfg.Debug.EnableLogging = *debug
	if *dumpFrames {
		cfg.Debug.DumpFrames = true
		cfg.Debug.DumpDir = *dumpDir
	}

	if *romFile != "" {
		if err := application.LoadROM(*romFile); err != nil {
			log.Fatalf("failed to load ROM: %v", err)
		}
		fmt.Printf("loaded %s\n", *romFile)
	}

	if *nogui {
		if *romFile == "" {
			log.Fatal("-rom is required in headless mode")
		}
		if err := application.RunHeadless(*frames); err != nil {
			log.Fatalf("headless run failed: %v", err)
		}
		fmt.Printf("ran %d frames headless\n", *frames)
		return
	}

	if err := application.Run(); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("interrupt received, shutting down")
		os.Exit(0)
	}()
}

func printUsage() {
	fmt.Println("gones - Go NES Emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  gones -rom <file> [options]          # windowed mode")
	fmt.Println("  gones -nogui -rom <file> [options]   # headless mode")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
}
