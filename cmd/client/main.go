// mlp-client: owns the keys, sends encrypted rows to mlp-server on stdout and
// finishes the network on the replies read from stdin.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/m"
	"mlp_lib/split"
	"mlp_lib/utils"
)

var (
	configFile  = flag.String("config", "", "YAML config written by mlp-train")
	weightsFile = flag.String("weights", "", "Weights file written by mlp-train")
	dataFile    = flag.String("data", "", "Test CSV (label,f1,...,fn)")
	logN        = flag.Int("logN", ckkswrapper.DefaultLogN, "Ring dimension log2")
	limit       = flag.Int("limit", 0, "Classify at most this many rows (0 = all)")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		return err
	}
	sizes, err := config.LayerSizes()
	if err != nil {
		return err
	}
	flat, err := utils.LoadWeights(*weightsFile)
	if err != nil {
		return err
	}
	layers, err := m.Unflatten(flat, sizes)
	if err != nil {
		return fmt.Errorf("%s: %w", *weightsFile, err)
	}

	f, err := os.Open(*dataFile)
	if err != nil {
		return err
	}
	X, y, err := m.ReadDataset(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", *dataFile, err)
	}

	log("Generating keys (logN=%d)", *logN)
	he := ckkswrapper.NewHeContextWithLogN(*logN)
	// The first layer stays with the server.
	client := split.NewClient(he, sizes[0], layers[1:])
	remote, err := split.Connect(split.NewProtocol(os.Stdin, os.Stdout), client)
	if err != nil {
		return err
	}

	rows, _ := X.Dims()
	if *limit > 0 && *limit < rows {
		rows = *limit
	}
	wrong := 0
	start := time.Now()
	for i := 0; i < rows; i++ {
		k, err := split.Predict(client, remote, X.RawRowView(i))
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if config.Classes[k] != y[i] {
			wrong++
		}
		log("Row %d: predicted %d, label %d", i, config.Classes[k], y[i])
	}
	if err := remote.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Encrypted error: %.4f over %d rows (%.2fs)\n",
		float64(wrong)/float64(rows), rows, time.Since(start).Seconds())
	return nil
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[CLIENT] "+format+"\n", args...)
	}
}
