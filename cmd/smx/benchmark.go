package main

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/mkarling/sparsemat/internal/dense"
	"github.com/mkarling/sparsemat/internal/device"
	"github.com/mkarling/sparsemat/internal/sparse"
)

func benchmarkCmd() *cli.Command {
	var (
		rows       int64
		cols       int64
		rhsCols    int64
		density    float64
		warmupRuns int64
		benchRuns  int64
		seed       int64
		formatName string
	)

	flags := append(deviceFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "rows",
			Usage:       "rows of the sparse operand",
			Value:       4096,
			Destination: &rows,
		},
		&cli.Int64Flag{
			Name:        "cols",
			Usage:       "columns of the sparse operand",
			Value:       4096,
			Destination: &cols,
		},
		&cli.Int64Flag{
			Name:        "rhs-cols",
			Usage:       "columns of the dense right-hand side",
			Value:       64,
			Destination: &rhsCols,
		},
		&cli.Float64Flag{
			Name:        "density",
			Usage:       "fraction of stored entries",
			Value:       0.01,
			Destination: &density,
		},
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       1,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of benchmark runs",
			Value:       3,
			Destination: &benchRuns,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed for matrix generation",
			Value:       42,
			Destination: &seed,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "sparse format of the operand (csc, csr, blockcol, blockrow)",
			Value:       "csc",
			Destination: &formatName,
		},
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Run sparse-times-dense multiply benchmarks",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyBenchConfig(cmd, LoadConfig(), &rows, &cols, &benchRuns, &density)
			log := newLogger()

			f, err := sparse.ParseFormat(formatName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			dev, err := resolveDevice()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			runID := "bench_" + uuid.NewString()
			log.Info("generating operands", "run_id", runID,
				"rows", rows, "cols", cols, "density", density, "format", f)

			s, err := randomSparse(dev, int(rows), int(cols), density, seed)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate sparse operand: %v", err), 1)
			}
			defer s.Release()
			if f != sparse.CSC {
				if err := s.ConvertToSparseFormat(f); err != nil {
					return cli.Exit(fmt.Sprintf("error: convert operand: %v", err), 1)
				}
			}
			nz, err := s.NzCount()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			d, err := dense.New[float32](dev, int(cols), int(rhsCols))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: allocate rhs: %v", err), 1)
			}
			defer d.Release()
			d.SetAll(1)
			c, err := dense.New[float32](dev, int(rows), int(rhsCols))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: allocate result: %v", err), 1)
			}
			defer c.Release()

			fmt.Println("=== smx Benchmark ===")
			fmt.Printf("Run:      %s\n", runID)
			fmt.Printf("Operand:  %dx%d %s, %d stored (%s)\n",
				rows, cols, f, nz, formatBytes(uint64(s.BufferSizeAllocated())))
			fmt.Printf("RHS:      %dx%d dense\n", cols, rhsCols)
			fmt.Printf("Device:   %d\n", dev.ID())
			fmt.Printf("CPUs:     %d\n", runtime.NumCPU())
			fmt.Printf("Warmup:   %d runs\n", warmupRuns)
			fmt.Printf("Runs:     %d\n", benchRuns)
			fmt.Println()

			runOnce := func() (time.Duration, error) {
				start := time.Now()
				if err := sparse.Multiply(s, false, d, false, c); err != nil {
					return 0, err
				}
				dev.Stream().Synchronize()
				return time.Since(start), nil
			}

			for i := range int(warmupRuns) {
				log.Info("warmup run", "run", i+1)
				if _, err := runOnce(); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			// 2 flops (mul + add) per stored entry per rhs column.
			flops := 2 * float64(nz) * float64(rhsCols)
			durations := make([]time.Duration, 0, benchRuns)
			for i := range int(benchRuns) {
				log.Info("benchmark run", "run", i+1)
				elapsed, err := runOnce()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark run %d: %v", i+1, err), 1)
				}
				durations = append(durations, elapsed)
			}

			fmt.Println("=== Results ===")
			fmt.Printf("%-6s %12s %12s\n", "Run", "Duration", "GFLOP/s")
			var sum time.Duration
			for i, elapsed := range durations {
				fmt.Printf("%-6d %12s %12.3f\n",
					i+1, elapsed.Round(time.Microsecond), flops/elapsed.Seconds()/1e9)
				sum += elapsed
			}
			mean := sum / time.Duration(len(durations))
			fmt.Println()
			fmt.Printf("Mean:   %s (%.3f GFLOP/s)\n",
				mean.Round(time.Microsecond), flops/mean.Seconds()/1e9)
			return nil
		},
	}
}

// randomSparse builds a CSC matrix with roughly rows*cols*density stored
// entries, values in (0, 1].
func randomSparse(dev *device.Device, rows, cols int, density float64, seed int64) (*sparse.Matrix[float32], error) {
	rng := rand.New(rand.NewSource(seed))
	perCol := int(float64(rows) * density)
	if perCol < 1 {
		perCol = 1
	}
	if perCol > rows {
		perCol = rows
	}

	ptr := make([]sparse.Index, cols+1)
	idx := make([]sparse.Index, 0, perCol*cols)
	vals := make([]float32, 0, perCol*cols)
	for j := range cols {
		seen := make(map[int]bool, perCol)
		for len(seen) < perCol {
			seen[rng.Intn(rows)] = true
		}
		// CSC wants row indices sorted within a column.
		for r := range rows {
			if seen[r] {
				idx = append(idx, sparse.Index(r))
				vals = append(vals, 1-rng.Float32()*0.5)
			}
		}
		ptr[j+1] = sparse.Index(len(idx))
	}

	m := sparse.NewEmpty[float32](dev, sparse.CSC)
	if err := m.SetFromCSC(ptr, idx, vals, rows, cols); err != nil {
		m.Release()
		return nil, err
	}
	return m, nil
}
