// mlp-infer: evaluates saved weights on a CSV dataset, optionally with the
// first layer computed on CKKS-encrypted inputs.
//
// Usage:
//
//	mlp-infer -config runs/mlp-<id>.yaml -weights runs/mlp-<id>.weights -data test.csv -encrypted
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/m"
	"mlp_lib/split"
	"mlp_lib/utils"
)

var (
	configFile  = flag.String("config", "", "YAML config written by mlp-train")
	weightsFile = flag.String("weights", "", "Weights file written by mlp-train")
	dataFile    = flag.String("data", "", "Test CSV (label,f1,...,fn)")
	encrypted   = flag.Bool("encrypted", false, "Evaluate the first layer under CKKS")
	logN        = flag.Int("logN", ckkswrapper.DefaultLogN, "Ring dimension log2")
	limit       = flag.Int("limit", 0, "Evaluate at most this many rows in encrypted mode (0 = all)")
)

func main() {
	flag.Parse()
	if *configFile == "" || *weightsFile == "" || *dataFile == "" {
		fmt.Fprintln(os.Stderr, "-config, -weights and -data are required")
		flag.Usage()
		os.Exit(2)
	}

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sizes, err := config.LayerSizes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	net := m.NewNetwork(m.ConfigFrom(config), nil)
	wf, err := os.Open(*weightsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening weights: %v\n", err)
		os.Exit(1)
	}
	err = net.Load(wf, sizes, config.Classes)
	wf.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", *weightsFile, err)
		os.Exit(1)
	}
	fmt.Printf("Loaded layers %v\n", net.LayerSizes())

	df, err := os.Open(*dataFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening data: %v\n", err)
		os.Exit(1)
	}
	X, y, err := m.ReadDataset(df)
	df.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *dataFile, err)
		os.Exit(1)
	}

	start := time.Now()
	rate, err := net.ErrorRate(X, y)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Test error: %.4f (%.2fs)\n", rate, time.Since(start).Seconds())

	if !*encrypted {
		return
	}
	if err := runEncrypted(net, X, y); err != nil {
		fmt.Fprintf(os.Stderr, "Encrypted inference failed: %v\n", err)
		os.Exit(1)
	}
}

// runEncrypted plays both parties in one process, joined by pipes, so every
// row crosses the protocol as ciphertext.
func runEncrypted(net *m.Network, X *mat.Dense, y []int) error {
	fmt.Println("\nInitializing HE context...")
	start := time.Now()
	he := ckkswrapper.NewHeContextWithLogN(*logN)
	layers := net.Weights()
	client := split.NewClient(he, net.LayerSizes()[0], layers[1:])
	fmt.Printf("HE initialization: %.2fs\n", time.Since(start).Seconds())

	toServer, clientOut := io.Pipe()
	toClient, serverOut := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- split.ServeLayer(split.NewProtocol(toServer, serverOut), layers[0])
	}()
	remote, err := split.Connect(split.NewProtocol(toClient, clientOut), client)
	if err != nil {
		return err
	}

	rows, _ := X.Dims()
	if *limit > 0 && *limit < rows {
		rows = *limit
	}
	classes := net.Classes()
	wrong := 0
	start = time.Now()
	for i := 0; i < rows; i++ {
		k, err := split.Predict(client, remote, X.RawRowView(i))
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if classes[k] != y[i] {
			wrong++
		}
	}
	if err := remote.Close(); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}
	elapsed := time.Since(start)
	fmt.Printf("Encrypted test error: %.4f over %d rows (%.1fms/row)\n",
		float64(wrong)/float64(rows), rows, float64(elapsed.Milliseconds())/float64(rows))
	return nil
}
