package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mkarling/sparsemat/internal/device"
	"github.com/mkarling/sparsemat/internal/kernel"
	"github.com/mkarling/sparsemat/internal/matfile"
	"github.com/mkarling/sparsemat/internal/sparse"
)

func inspectCmd() *cli.Command {
	var (
		path        string
		showValues  bool
		valuesLimit int
		nameFilter  string
	)

	flags := append(deviceFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "path to .smx container",
			Destination: &path,
			Required:    true,
		},
		&cli.BoolFlag{Name: "values", Usage: "print stored values per matrix", Destination: &showValues},
		&cli.IntFlag{Name: "values-limit", Usage: "limit value listing (0 = no limit)", Value: 16, Destination: &valuesLimit},
		&cli.StringFlag{Name: "name-filter", Usage: "substring filter for section names", Destination: &nameFilter},
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of an .smx matrix container",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyCommonConfig(cmd, LoadConfig())

			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat %q: %v", path, err), 1)
			}
			mf, err := matfile.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open container: %v", err), 1)
			}
			defer func() { _ = mf.Close() }()

			dev, err := resolveDevice()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			fmt.Printf("Container: %s (%s)\n", filepath.Base(path), formatBytes(uint64(stat.Size())))
			fmt.Printf("Sections:  %d\n", len(mf.Sections))
			fmt.Println()

			for i := range mf.Sections {
				s := &mf.Sections[i]
				if nameFilter != "" && !strings.Contains(s.Name, nameFilter) {
					continue
				}
				fmt.Printf("%-24s off=%-10d size=%s\n", s.Name, s.Offset, formatBytes(s.Size))
				if err := printMatrix(dev, mf.SectionData(s), showValues, valuesLimit); err != nil {
					fmt.Printf("  (not a matrix stream: %v)\n", err)
				}
			}
			return nil
		},
	}
}

// printMatrix decodes a serialized matrix section and prints its shape.
// Element width is not known up front, so it tries float32 then float64.
func printMatrix(dev *device.Device, data []byte, showValues bool, limit int) error {
	if err := printMatrixAs[float32](dev, data, showValues, limit); err == nil {
		return nil
	}
	return printMatrixAs[float64](dev, data, showValues, limit)
}

func printMatrixAs[T kernel.Float](dev *device.Device, data []byte, showValues bool, limit int) error {
	m := sparse.NewEmpty[T](dev, sparse.CSC)
	defer m.Release()
	if _, err := m.ReadFrom(bytes.NewReader(data)); err != nil {
		return err
	}
	nz, err := m.NzCount()
	if err != nil {
		return err
	}
	var zero T
	fmt.Printf("  %s %dx%d, nz=%d, elem=%d bytes\n",
		m.Format(), m.Rows(), m.Cols(), nz, binary.Size(zero))
	if !showValues {
		return nil
	}
	vals, err := m.NzValues()
	if err != nil {
		return err
	}
	n := len(vals)
	if limit > 0 && n > limit {
		n = limit
	}
	fmt.Printf("  values: %v", vals[:n])
	if n < len(vals) {
		fmt.Printf(" ... (%d more)", len(vals)-n)
	}
	fmt.Println()
	return nil
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
