package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/greut/tileview/config"
	"github.com/greut/tileview/image"
	"github.com/greut/tileview/viewer"
	flag "github.com/spf13/pflag"
)

func main() {
	var configFile = flag.StringP("config", "c", "", "Define the configuration file to use.")
	var width = flag.Float64("width", 0, "Viewport width, overrides the configuration.")
	var height = flag.Float64("height", 0, "Viewport height, overrides the configuration.")
	flag.Parse()

	cfg := config.Resolved()
	if *configFile != "" {
		log.Println(fmt.Sprintf("Reading configuration from %s", *configFile))
		c, err := config.Read(*configFile)
		if err != nil {
			log.Fatal(err)
		}
		cfg = c
	}
	if *width > 0 && *height > 0 {
		cfg.Viewport = config.ViewportConfig{Width: *width, Height: *height}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loader := viewer.NewLoader(cfg)

	if flag.NArg() > 0 {
		if err := describe(ctx, loader, flag.Arg(0)); err != nil {
			log.Fatal(err)
		}
		return
	}

	registry := viewer.NewRegistry(loader)
	defer registry.Close()

	server := &http.Server{
		Addr:    cfg.Listen(),
		Handler: viewer.NewHandler(cfg, registry),
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	log.Println(fmt.Sprintf("Server running on %v", server.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// describe prints the detection, the description and the geometry of the
// image at address.
func describe(ctx context.Context, loader *viewer.Loader, address string) error {
	det, err := image.Detect(ctx, address, loader.Metadata)
	if err != nil {
		return err
	}

	s, err := loader.Open(ctx, address, loader.Viewport)
	if err != nil {
		return err
	}
	defer s.Close()

	g := s.Geometry()
	out := struct {
		Detection image.Detection `json:"detection"`
		Info      viewer.Info     `json:"info"`
		Layout    viewer.Layout   `json:"layout"`
	}{
		Detection: det,
		Info:      viewer.NewInfo(address, s.Descriptor(), os.Getenv("LANG")),
		Layout:    viewer.Layout{Geometry: g, Background: s.Background()},
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
