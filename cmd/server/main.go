// mlp-server: evaluates the first layer of a trained network on encrypted
// rows received on stdin, answering on stdout.
//
// Usage:
//
//	mkfifo pipe
//	mlp-server -config run.yaml -weights run.weights < pipe | mlp-client -config run.yaml -weights run.weights -data test.csv > pipe
package main

import (
	"flag"
	"fmt"
	"os"

	"mlp_lib/m"
	"mlp_lib/split"
	"mlp_lib/utils"
)

var (
	configFile  = flag.String("config", "", "YAML config written by mlp-train")
	weightsFile = flag.String("weights", "", "Weights file written by mlp-train")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()

	layer, err := firstLayer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	r, c := layer.W.Dims()
	log("First layer ready (%d -> %d), waiting for keys", c, r)

	if err := split.ServeLayer(split.NewProtocol(os.Stdin, os.Stdout), layer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log("Server done")
}

func firstLayer() (m.LayerParams, error) {
	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		return m.LayerParams{}, err
	}
	sizes, err := config.LayerSizes()
	if err != nil {
		return m.LayerParams{}, err
	}
	flat, err := utils.LoadWeights(*weightsFile)
	if err != nil {
		return m.LayerParams{}, err
	}
	layers, err := m.Unflatten(flat, sizes)
	if err != nil {
		return m.LayerParams{}, fmt.Errorf("%s: %w", *weightsFile, err)
	}
	return layers[0], nil
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[SERVER] "+format+"\n", args...)
	}
}
