// CPK archive extractor - command line interface
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"cripak"
)

func main() {
	app := &cli.App{
		Name:  "cpkextract",
		Usage: "List, inspect and extract CRI CPK archives",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress all non-essential output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") && c.Bool("quiet") {
				return fmt.Errorf("cannot use both -verbose and -quiet")
			}
			if c.Bool("verbose") {
				outputLevel = verboseOutput
			}
			if c.Bool("quiet") {
				outputLevel = quietOutput
			}
			return nil
		},
		Commands: []*cli.Command{
			&cmdList,
			&cmdExtract,
			&cmdUnpack,
			&cmdDecompress,
			&cmdInspect,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

var cryptoFlag = &cli.StringFlag{
	Name:  "crypto",
	Usage: "Per-file decryption scheme: none, p5r or idstream",
	Value: "none",
}

func decryptorFor(name string) (cripak.Decryptor, error) {
	switch name {
	case "", "none":
		return cripak.NopDecryptor{}, nil
	case "p5r":
		return cripak.P5RDecryptor{}, nil
	case "idstream":
		return cripak.IDStreamDecryptor{}, nil
	}
	return nil, fmt.Errorf("unknown crypto scheme: %s", name)
}

var cmdList = cli.Command{
	Name:  "list",
	Usage: "List the files stored in a CPK archive",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "in", Required: true},
	},
	Action: listArchive,
}

func listArchive(c *cli.Context) error {
	reader, err := cripak.OpenCpk(c.Path("in"), nil)
	if err != nil {
		return err
	}
	defer reader.Close()

	files, err := reader.Files()
	if err != nil {
		return err
	}

	infof("Archive: %s (%d files, content offset 0x%X, align %d)\n",
		c.Path("in"), len(files), reader.ContentOffset(), reader.Align())
	for _, f := range files {
		flags := "stored"
		if f.Compressed() {
			flags = "crilayla"
		}
		fmt.Printf("  id=%-6d offset=0x%08X %10d -> %-10d %-8s %s\n",
			f.ID, f.Offset, f.FileSize, f.ExtractSize, flags, f.Path())
		if f.UserString != "" {
			verbosef("      user: %s\n", f.UserString)
		}
	}
	return nil
}

var cmdExtract = cli.Command{
	Name:  "extract",
	Usage: "Extract a single file by its dir/name path",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "in", Required: true},
		&cli.StringFlag{Name: "file", Required: true},
		&cli.PathFlag{Name: "out", Usage: "Output path (defaults to the file name)"},
		cryptoFlag,
	},
	Action: extractOne,
}

func extractOne(c *cli.Context) error {
	decryptor, err := decryptorFor(c.String("crypto"))
	if err != nil {
		return err
	}
	reader, err := cripak.OpenCpk(c.Path("in"), decryptor)
	if err != nil {
		return err
	}
	defer reader.Close()

	entry, err := reader.ByPath(c.String("file"))
	if err != nil {
		return err
	}
	data, err := reader.ExtractFile(entry)
	if err != nil {
		return err
	}

	outPath := c.Path("out")
	if outPath == "" {
		outPath = entry.Name
	}
	if err := writeExtractedFile(outPath, data); err != nil {
		return err
	}
	infof("Extracted %s (%d bytes) to %s\n", entry.Path(), len(data), outPath)
	return nil
}

var cmdUnpack = cli.Command{
	Name:  "unpack",
	Usage: "Extract every file into an output directory",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "in", Required: true},
		&cli.PathFlag{Name: "out", Value: "extracted"},
		&cli.IntFlag{Name: "workers", Usage: "Parallel extraction workers (0 = auto)"},
		cryptoFlag,
	},
	Action: unpackArchive,
}

func unpackArchive(c *cli.Context) error {
	decryptor, err := decryptorFor(c.String("crypto"))
	if err != nil {
		return err
	}
	reader, err := cripak.OpenCpk(c.Path("in"), decryptor)
	if err != nil {
		return err
	}
	defer reader.Close()

	files, err := reader.Files()
	if err != nil {
		return err
	}
	infof("Unpacking %d files from %s\n", len(files), c.Path("in"))

	outputDir := c.Path("out")
	err = reader.ExtractAll(c.Int("workers"), func(f *cripak.CpkFile, data []byte) error {
		verbosef("  %s (%d bytes)\n", f.Path(), len(data))
		return writeExtractedFile(filepath.Join(outputDir, filepath.FromSlash(f.Path())), data)
	})
	if err != nil {
		return err
	}
	infof("Unpacked %d files to %s\n", len(files), outputDir)
	return nil
}

var cmdDecompress = cli.Command{
	Name:  "decompress",
	Usage: "Decompress a standalone CRILAYLA blob",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "in", Required: true},
		&cli.PathFlag{Name: "out", Usage: "Output path (defaults to <in>.out)"},
	},
	Action: decompressFile,
}

func decompressFile(c *cli.Context) error {
	inPath := c.Path("in")
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	decompressed, err := cripak.DecompressCriLayla(data)
	if err != nil {
		return err
	}

	outPath := c.Path("out")
	if outPath == "" {
		outPath = inPath + ".out"
	}
	if err := os.WriteFile(outPath, decompressed, 0644); err != nil {
		return err
	}
	infof("Saved %d bytes to %s\n", len(decompressed), outPath)
	return nil
}

var cmdInspect = cli.Command{
	Name:  "inspect",
	Usage: "Dump the structure of a standalone UTF table file (.acb/.acf)",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "in", Required: true},
		&cli.IntFlag{Name: "rows", Usage: "Max rows to print", Value: 10},
	},
	Action: inspectTable,
}

func inspectTable(c *cli.Context) error {
	data, err := os.ReadFile(c.Path("in"))
	if err != nil {
		return err
	}
	table, err := cripak.ParseTable(data)
	if err != nil {
		return err
	}

	infof("Table %q: %d columns, %d rows, stride %d\n",
		table.Name, table.Header.ColumnCount, table.Header.RowCount, table.Header.RowStride)
	for _, col := range table.Columns {
		infof("  %-24s %-7s %s\n", col.Name, col.Type, col.Storage)
	}

	maxRows := c.Int("rows")
	for i, row := range table.Rows {
		if i >= maxRows {
			infof("  ... %d more rows\n", len(table.Rows)-maxRows)
			break
		}
		infof("  row %d:\n", i)
		for ci, v := range row {
			if !v.Valid {
				continue
			}
			switch v.Type {
			case cripak.TypeString:
				infof("    %-24s %q\n", table.Columns[ci].Name, v.Str)
			case cripak.TypeData:
				infof("    %-24s data[%d:%d]\n", table.Columns[ci].Name, v.Data.Offset, v.Data.Length)
			case cripak.TypeF32, cripak.TypeF64:
				infof("    %-24s %g\n", table.Columns[ci].Name, v.Float())
			case cripak.TypeI8, cripak.TypeI16, cripak.TypeI32, cripak.TypeI64:
				infof("    %-24s %d\n", table.Columns[ci].Name, v.Int())
			default:
				infof("    %-24s %d\n", table.Columns[ci].Name, v.Uint())
			}
		}
	}

	verbosef("\nFirst bytes:\n%s", cripak.HexDump(data, 128))
	return nil
}

// writeExtractedFile writes the processed file data to disk
func writeExtractedFile(outputPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(outputPath), err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", outputPath, err)
	}
	return nil
}
