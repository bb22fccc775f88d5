package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hostcast/internal/server"
)

var (
	flagAddr           = flag.String("addr", "0.0.0.0:5000", "HTTP listen address")
	flagDisplay        = flag.Int("display", 0, "Display index to capture")
	flagFPS            = flag.Int("fps", 30, "Capture frame rate")
	flagWidth          = flag.Int("width", 1280, "Downscale frames to this width (0 = no scaling)")
	flagQuality        = flag.Int("quality", 70, "JPEG quality for mirrored frames (1-100)")
	flagVirtualQuality = flag.Int("virtual-quality", 75, "JPEG quality for virtual display frames (1-100)")
	flagStats          = flag.Bool("stats", false, "Log pipeline stats every 5 seconds")
	flagUploads        = flag.String("uploads", "uploads", "Directory for shared files (empty = disable file sharing)")
)

func main() {
	flag.Parse()

	if *flagFPS <= 0 {
		log.Fatal("--fps must be > 0")
	}
	if *flagQuality < 1 || *flagQuality > 100 {
		log.Fatal("--quality must be 1-100")
	}

	srv, err := server.New(server.Config{
		Addr:           *flagAddr,
		FPS:            *flagFPS,
		TargetWidth:    *flagWidth,
		Quality:        *flagQuality,
		VirtualQuality: *flagVirtualQuality,
		Stats:          *flagStats,
		UploadDir:      *flagUploads,

		NewCapturer: newCapturer(*flagDisplay),
		NewAudio:    newAudio,
		NewDriver:   newDriver,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Handle graceful shutdown: stop both streaming loops and release the
	// capture devices before exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %s, shutting down...", sig)
		srv.Teardown()
		os.Exit(0)
	}()

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
