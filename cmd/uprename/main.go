package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uprename/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬ ┬┌─┐┬─┐┌─┐┌┐┌┌─┐┌┬┐┌─┐
  │ │├─┘├┬┘├┤ │││├─┤│││├┤
  └─┘┴  ┴└─└─┘┘└┘┴ ┴┴ ┴└─┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "uprename",
		Short: "Relocate staged uploads to their client file names",
		Long: `uprename sits behind a web server upload module.

The upload module writes every uploaded file to a staging directory
under a generated name and forwards the request with the file's
name, content type, staged path, checksum and size. uprename reads
those fields and renames each staged file to the name the client sent.

  • HTTP routes that answer with a JSON summary or proxy upstream
  • Filesystem and S3 storage backends
  • Prometheus metrics and OpenTelemetry spans
  • Live outcome feed over WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(
		serveCmd(),
		processCmd(),
		stageCmd(),
		versionCmd(),
	)

	return rootCmd
}

// newLogger builds the slog handler named by format ("text" or "json").
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
