// Package main serves a nearest-centroid model over the line protocol used
// for subprocess classifiers: one JSON request per stdin line, one JSON
// response per stdout line. Point a model.json executable at it to run a
// centroid model out of process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/mudra/internal/model"
)

func main() {
	path := flag.String("centroids", model.CentroidsFile, "path to centroids.json")
	flag.Parse()

	c, err := model.LoadCentroids(*path)
	if err != nil {
		writeError(err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := model.Serve(ctx, c, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "centroid: %v\n", err)
		os.Exit(1)
	}
}

func writeError(err error) {
	json.NewEncoder(os.Stdout).Encode(model.Response{Error: err.Error()})
}
