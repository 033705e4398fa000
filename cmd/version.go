package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/pb33f/mirrorlog/cmd.Version=1.0.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

var readBuildInfo = debug.ReadBuildInfo

// CurrentBuild returns the ldflags values, filling the gaps from the module
// build info that `go install` embeds.
func CurrentBuild() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

func (b BuildInfo) write(w io.Writer) {
	fmt.Fprintln(w, "mirrorlog - mirrored HTTP traffic ingestion")
	fmt.Fprintf(w, "Version:    %s\n", b.Version)
	fmt.Fprintf(w, "Git Commit: %s\n", b.GitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", b.BuildDate)
	fmt.Fprintf(w, "Go Version: %s\n", b.GoVersion)
	fmt.Fprintf(w, "OS/Arch:    %s\n", b.Platform)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display the mirrorlog banner, version, commit and build platform.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, RenderBanner())
		CurrentBuild().write(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
