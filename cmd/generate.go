package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/pb33f/mirrorlog/mirrorgen"
	"github.com/pb33f/mirrorlog/motor/model"
	"github.com/spf13/cobra"
)

var (
	genCount         int
	genOutputFile    string
	genAddress       string
	genShapes        []string
	genSeed          int64
	genDictPath      string
	genMaxDepth      int
	genMaxNodes      int
	genInvalidEvery  int
	genCompressEvery int
	genWithDuration  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic mirror records",
	Long: `Generate synthetic mirror records for testing. Records are written as
newline-delimited JSON to a file, or sent straight to a running server.
Direct captures can only be sent, one connection each.

Examples:
  mirrorlog generate -n 100 -o records.jsonl
  mirrorlog generate -n 1000 --shapes exchange --with-duration --address localhost:8080
  mirrorlog generate -n 20 --shapes direct --address /run/mirror.sock
  mirrorlog generate -n 50 --invalid-every 10 --compress-every 3`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&genCount, "records", "n", 10, "Number of records to generate")
	generateCmd.Flags().StringVarP(&genOutputFile, "output", "o", "", "Output file path (default: temp file)")
	generateCmd.Flags().StringVarP(&genAddress, "address", "a", "", "Send records to a running server instead of writing a file")
	generateCmd.Flags().StringSliceVar(&genShapes, "shapes", []string{"request-response", "exchange"}, "Shapes to generate: direct, request-response, exchange")
	generateCmd.Flags().Int64VarP(&genSeed, "seed", "s", 0, "Random seed for reproducibility (0 = use current time)")
	generateCmd.Flags().StringVarP(&genDictPath, "dict", "d", "/usr/share/dict/words", "Dictionary file path")
	generateCmd.Flags().IntVar(&genMaxDepth, "max-depth", 3, "Maximum JSON body nesting depth")
	generateCmd.Flags().IntVar(&genMaxNodes, "max-nodes", 6, "Maximum JSON body nodes per level")
	generateCmd.Flags().IntVar(&genInvalidEvery, "invalid-every", 0, "Make every nth record malformed (0 = never)")
	generateCmd.Flags().IntVar(&genCompressEvery, "compress-every", 0, "Gzip every nth response body (0 = never)")
	generateCmd.Flags().BoolVar(&genWithDuration, "with-duration", false, "Report a response duration on every record")
}

func parseShapes(names []string) ([]model.Shape, error) {
	shapes := make([]model.Shape, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "direct", "a":
			shapes = append(shapes, model.ShapeDirectCapture)
		case "request-response", "b":
			shapes = append(shapes, model.ShapeRequestResponse)
		case "exchange", "c":
			shapes = append(shapes, model.ShapeExchange)
		default:
			return nil, fmt.Errorf("unknown shape: %s", name)
		}
	}
	return shapes, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	shapes, err := parseShapes(genShapes)
	if err != nil {
		return err
	}

	opts := mirrorgen.GenerateOptions{
		Count:          genCount,
		Shapes:         shapes,
		Seed:           genSeed,
		DictionaryPath: genDictPath,
		InvalidEvery:   genInvalidEvery,
		WithDuration:   genWithDuration,
		CompressEvery:  genCompressEvery,
		MaxJSONDepth:   genMaxDepth,
		MaxJSONNodes:   genMaxNodes,
	}

	out := cmd.OutOrStdout()

	if genAddress == "" {
		for _, s := range shapes {
			if s == model.ShapeDirectCapture {
				return fmt.Errorf("direct captures can only be sent with --address")
			}
		}
		result, err := mirrorgen.GenerateToFile(opts, genOutputFile)
		if err != nil {
			return fmt.Errorf("failed to generate records: %w", err)
		}
		fmt.Fprintf(out, "✓ Generated records: %s\n", result.FilePath)
		fmt.Fprintf(out, "  Total records: %d\n", result.TotalRecords)
		if result.Invalid > 0 {
			fmt.Fprintf(out, "  Malformed:     %d\n", result.Invalid)
		}
		return nil
	}

	records, err := mirrorgen.Generate(opts)
	if err != nil {
		return fmt.Errorf("failed to generate records: %w", err)
	}

	var lines, direct [][]byte
	for _, rec := range records {
		if rec.Shape == model.ShapeDirectCapture {
			direct = append(direct, rec.Data)
		} else {
			lines = append(lines, rec.Data)
		}
	}

	start := time.Now()
	sent := 0
	if len(lines) > 0 {
		sent, err = sendPayloads(cmd.Context(), genAddress, lines, false)
	}
	if err == nil && len(direct) > 0 {
		var n int
		n, err = sendPayloads(cmd.Context(), genAddress, direct, true)
		sent += n
	}
	fmt.Fprintf(out, "✓ Sent %d records to %s in %s\n", sent, genAddress, time.Since(start).Round(time.Millisecond))
	return err
}
