// mlp-train: trains a sigmoid MLP classifier on a CSV dataset
//
// Usage:
//
//	mlp-train -data train.csv -hidden 300 -alpha 0.001 -lambda 0.01 -epochs 16 -output runs
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"

	"mlp_lib/m"
	"mlp_lib/utils"
)

var (
	configFile = flag.String("config", "", "YAML config file; explicit flags override it")
	dataFile   = flag.String("data", "", "Training CSV (label,f1,...,fn)")
	hidden     = flag.String("hidden", "100", "Hidden layer sizes, comma separated")
	alpha      = flag.Float64("alpha", 0.0001, "Learning rate")
	lambda     = flag.Float64("lambda", 1, "L2 regularization strength")
	epochs     = flag.Int("epochs", 10, "Number of training epochs")
	batches    = flag.Int("batches", 100, "Mini-batches per epoch")
	seed       = flag.Uint64("seed", 1, "Random seed")
	verbose    = flag.Bool("verbose", true, "Print per-epoch loss and timings")
	outputDir  = flag.String("output", ".", "Directory for weights and config")
)

func main() {
	flag.Parse()
	if *dataFile == "" {
		fmt.Fprintln(os.Stderr, "missing -data")
		flag.Usage()
		os.Exit(2)
	}

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	utils.Verbose = config.Verbose

	f, err := os.Open(*dataFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening data: %v\n", err)
		os.Exit(1)
	}
	X, y, err := m.ReadDataset(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *dataFile, err)
		os.Exit(1)
	}
	n, d := X.Dims()

	runID := uuid.NewString()
	fmt.Printf("\nRun %s\n", runID)
	fmt.Printf("  Examples:      %d x %d\n", n, d)
	fmt.Printf("  Hidden layers: %v\n", config.HiddenLayerSizes)
	fmt.Printf("  Alpha:         %g\n", config.Alpha)
	fmt.Printf("  Lambda:        %g\n", config.Lambda)
	fmt.Printf("  Epochs:        %d\n", config.Epochs)
	fmt.Printf("  Seed:          %d\n", config.Seed)
	fmt.Println()

	net := m.NewNetwork(m.ConfigFrom(config), rand.New(rand.NewSource(config.Seed)))
	start := time.Now()
	if err := net.Fit(X, y); err != nil {
		fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Training time: %.2fs\n", time.Since(start).Seconds())

	stats := net.Stats()
	utils.PrintTimingStats(&stats, config.Epochs)

	rate, err := net.ErrorRate(X, y)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nTraining error: %.4f\n", rate)

	config.InputDim = d
	config.Classes = net.Classes()
	if err := save(net, config, runID); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*utils.Config, error) {
	config := utils.DefaultConfig()
	if *configFile != "" {
		loaded, err := utils.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
		config = *loaded
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "hidden":
			var arch []int
			if arch, err = utils.ParseArchitecture(*hidden); err == nil {
				config.HiddenLayerSizes = arch
			}
		case "alpha":
			config.Alpha = *alpha
		case "lambda":
			config.Lambda = *lambda
		case "epochs":
			config.Epochs = *epochs
		case "batches":
			config.NumBatches = *batches
		case "seed":
			config.Seed = *seed
		case "verbose":
			config.Verbose = *verbose
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parsing -hidden: %w", err)
	}
	if *configFile == "" && !isSet("verbose") {
		config.Verbose = *verbose
	}
	return &config, utils.ValidateConfig(&config)
}

func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func save(net *m.Network, config *utils.Config, runID string) error {
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return err
	}
	base := filepath.Join(*outputDir, config.Name+"-"+runID)

	w, err := os.Create(base + ".weights")
	if err != nil {
		return err
	}
	if err := net.Save(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := utils.SaveConfig(base+".yaml", config); err != nil {
		return err
	}
	fmt.Printf("Saved %s.weights and %s.yaml\n", base, base)
	return nil
}
