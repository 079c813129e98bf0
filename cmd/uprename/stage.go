package main

import (
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/vango-dev/uprename/internal/errors"
	"github.com/vango-dev/uprename/pkg/upload"
)

type stageOptions struct {
	dir      string
	out      string
	boundary string
}

func stageCmd() *cobra.Command {
	var opts stageOptions

	cmd := &cobra.Command{
		Use:   "stage FILE...",
		Short: "Stage local files and write the request body for them",
		Long: `Copy files into a staging directory under generated names, the way
the upload module does, and write the request body it would forward.

The body goes to stdout unless --out is given, so it can be fed
straight to process or to a running server.

Examples:
  uprename stage photo.jpg notes.txt --dir=/tmp/spool --out=body.bin
  uprename stage report.pdf --dir=/tmp/spool | curl --data-binary @- localhost:8080/upload`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd.OutOrStdout(), cmd.ErrOrStderr(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Staging directory (required)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the body to this file instead of stdout")
	cmd.Flags().StringVarP(&opts.boundary, "boundary", "b", "", "Multipart boundary (default: random, 40 bytes)")
	cmd.MarkFlagRequired("dir")

	return cmd
}

func runStage(stdout, stderr io.Writer, files []string, opts stageOptions) error {
	boundary := opts.boundary
	if boundary == "" {
		boundary = upload.NewBoundary()
	}
	if strings.ContainsAny(boundary, "\r\n") {
		return errors.New("E501").WithDetail("Boundary " + quoteArg(boundary) + " contains a line break")
	}

	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return errors.New("E500").Wrap(err)
	}
	stager, err := upload.NewStager(osfs.New("/"), filepath.ToSlash(dir), 0)
	if err != nil {
		return errors.New("E202").Wrap(err)
	}

	staged := make([]upload.StagedFile, 0, len(files))
	for _, path := range files {
		sf, err := stageFile(stager, path)
		if err != nil {
			return errors.New("E202").
				WithDetail("Could not stage " + path).
				Wrap(err)
		}
		staged = append(staged, sf)
		success(stderr, "%s → %s", path, sf.Path)
	}

	w := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return errors.New("E500").Wrap(err)
		}
		defer f.Close()
		w = f
	}

	if err := upload.WriteBody(w, boundary, staged); err != nil {
		return errors.New("E202").Wrap(err)
	}
	if opts.out != "" {
		info(stderr, "body written to %s (boundary %s)", opts.out, boundary)
	}
	return nil
}

func stageFile(stager *upload.Stager, path string) (upload.StagedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return upload.StagedFile{}, err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return stager.Stage(filepath.Base(path), contentType, f)
}

func quoteArg(s string) string {
	return `"` + s + `"`
}
