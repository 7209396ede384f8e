package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mkarling/sparsemat/internal/device"
	"github.com/mkarling/sparsemat/internal/kernel"
	"github.com/mkarling/sparsemat/internal/matfile"
	"github.com/mkarling/sparsemat/internal/sparse"
)

func convertCmd() *cli.Command {
	var (
		inPath     string
		outPath    string
		formatName string
		nameFilter string
	)

	flags := append(deviceFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "in",
			Aliases:     []string{"i"},
			Usage:       "path to the source .smx container",
			Destination: &inPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "path for the converted .smx container",
			Destination: &outPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "target sparse format (csc, csr, blockcol, blockrow)",
			Destination: &formatName,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "name-filter",
			Usage:       "only convert sections whose name contains this substring",
			Destination: &nameFilter,
		},
	)

	return &cli.Command{
		Name:  "convert",
		Usage: "Convert the matrices in an .smx container to another format",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyCommonConfig(cmd, LoadConfig())
			log := newLogger()

			target, err := sparse.ParseFormat(formatName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			dev, err := resolveDevice()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			mf, err := matfile.Open(inPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open container: %v", err), 1)
			}
			defer func() { _ = mf.Close() }()

			out, err := matfile.Create(outPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create container: %v", err), 1)
			}

			converted := 0
			for i := range mf.Sections {
				s := &mf.Sections[i]
				data := mf.SectionData(s)
				if nameFilter != "" && !strings.Contains(s.Name, nameFilter) {
					if err := out.Append(s.Name, bytesWriterTo(data)); err != nil {
						return cli.Exit(fmt.Sprintf("error: copy section %q: %v", s.Name, err), 1)
					}
					continue
				}
				payload, err := convertSection(dev, data, target)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: convert section %q: %v", s.Name, err), 1)
				}
				if err := out.Append(s.Name, payload); err != nil {
					return cli.Exit(fmt.Sprintf("error: write section %q: %v", s.Name, err), 1)
				}
				converted++
				log.Info("section converted", "name", s.Name, "format", target)
			}
			if err := out.Close(); err != nil {
				return cli.Exit(fmt.Sprintf("error: close container: %v", err), 1)
			}
			log.Info("container written", "path", outPath, "sections", len(mf.Sections), "converted", converted)
			return nil
		},
	}
}

// convertSection decodes one serialized matrix, converts it and returns the
// re-serialized payload. Element width is discovered by decode attempt.
func convertSection(dev *device.Device, data []byte, target sparse.Format) (*bytes.Buffer, error) {
	if buf, err := convertSectionAs[float32](dev, data, target); err == nil {
		return buf, nil
	}
	return convertSectionAs[float64](dev, data, target)
}

func convertSectionAs[T kernel.Float](dev *device.Device, data []byte, target sparse.Format) (*bytes.Buffer, error) {
	m := sparse.NewEmpty[T](dev, sparse.CSC)
	defer m.Release()
	if _, err := m.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if m.Format() != target {
		if err := m.ConvertToSparseFormat(target); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

// bytesWriterTo adapts a raw section payload to the writer's io.WriterTo
// contract.
type bytesWriterTo []byte

func (b bytesWriterTo) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}
