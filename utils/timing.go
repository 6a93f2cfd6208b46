package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for a training run
type TimingStats struct {
	TotalTime    time.Duration
	InitTime     time.Duration
	LossGradTime time.Duration
	UpdateTime   time.Duration
	EpochTimes   []time.Duration
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, steps int) {
	if !Verbose || steps <= 0 {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total training time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Average time per step: %v\n", stats.TotalTime/time.Duration(steps))
	fmt.Fprintf(Output, "Steps completed: %d\n", steps)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Parameter initialization: %v (%.1f%%)\n", stats.InitTime, percentOf(stats.InitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Loss and gradient: %v (%.1f%%)\n", stats.LossGradTime, percentOf(stats.LossGradTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Weight updates: %v (%.1f%%)\n", stats.UpdateTime, percentOf(stats.UpdateTime, stats.TotalTime))
	fmt.Fprintln(Output, "\nPer epoch:")
	for i, d := range stats.EpochTimes {
		fmt.Fprintf(Output, "  Epoch %d: %v\n", i+1, d)
	}
	fmt.Fprintln(Output, "\nPerformance metrics:")
	fmt.Fprintf(Output, "  Average loss/gradient time: %.1fµs\n", DurationUS(stats.LossGradTime)/float64(steps))
	fmt.Fprintf(Output, "  Average update time: %.1fµs\n", DurationUS(stats.UpdateTime)/float64(steps))
}

func percentOf(d, total time.Duration) float64 {
	if total == 0 {
		return 0
	}
	return float64(d) / float64(total) * 100
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
