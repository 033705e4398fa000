package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pb33f/mirrorlog/replay"
	"github.com/spf13/cobra"
)

var (
	replayAddress    string
	replayOutputFile string
	replayRemoteAddr string
	replayRemotePort int
)

var replayCmd = &cobra.Command{
	Use:   "replay <har-file>",
	Short: "Replay a HAR recording as mirror records",
	Long: `Convert every entry of a HAR file into an exchange mirror record and send
the records to a running server, or write them to a file. Entries without a
start time or an absolute URL are skipped.`,
	Args: cobra.ExactArgs(1),
	Example: `  mirrorlog replay recording.har --address localhost:8080
  mirrorlog replay recording.har -o records.jsonl`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayAddress, "address", "a", "localhost:8080", "Server address, host:port or a unix socket path")
	replayCmd.Flags().StringVarP(&replayOutputFile, "output", "o", "", "Write records to a file instead of sending them")
	replayCmd.Flags().StringVar(&replayRemoteAddr, "remote-addr", "127.0.0.1", "Client address reported for every record")
	replayCmd.Flags().IntVar(&replayRemotePort, "remote-port", 0, "Client port reported when the HAR connection id is not a port")
}

func runReplay(cmd *cobra.Command, args []string) error {
	harFile := args[0]
	logger := GetLogger()

	if err := ValidateInputFile(harFile); err != nil {
		return err
	}

	file, err := os.Open(harFile)
	if err != nil {
		return err
	}
	defer file.Close()

	var buf bytes.Buffer
	start := time.Now()
	result, err := replay.WriteLines(file, &buf, replay.ConvertOptions{
		RemoteAddr: replayRemoteAddr,
		RemotePort: replayRemotePort,
	})
	if err != nil {
		return err
	}

	logger.Info("HAR file converted",
		"entries", result.Entries,
		"records", result.Written,
		"skipped", len(result.Skipped),
		"fingerprint", result.Fingerprint,
		"file_size_mb", result.Bytes/(1024*1024),
		"took", time.Since(start))
	for _, s := range result.Skipped {
		logger.Debug("entry skipped", "index", s.Index, "error", s.Err)
	}

	out := cmd.OutOrStdout()
	if replayOutputFile != "" {
		if err := os.WriteFile(replayOutputFile, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write records: %w", err)
		}
		fmt.Fprintf(out, "✓ Wrote %d records to %s\n", result.Written, replayOutputFile)
		return nil
	}

	lines := bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n"))
	if result.Written == 0 {
		lines = nil
	}
	sent, err := sendPayloads(cmd.Context(), replayAddress, lines, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Sent %d records to %s\n", sent, replayAddress)
	return nil
}
