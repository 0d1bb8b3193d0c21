// Package editor launches the user's preferred text editor.
package editor

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/codec"
)

// Streams are the terminal the editor runs on.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Open runs the editor on path and waits for it to exit.
func Open(ctx context.Context, path string, s Streams) error {
	argv := detectEditor()
	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
	cmd.Stdin = s.In
	cmd.Stdout = s.Out
	cmd.Stderr = s.Err

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "running editor %s", argv[0])
	}
	return nil
}

// EditValue writes v to a temporary file in format f, opens the editor on
// it and decodes the result. changed is false when the file was saved
// untouched.
func EditValue(ctx context.Context, v any, f codec.Format, s Streams) (result any, changed bool, err error) {
	data, err := f.Encode(v)
	if err != nil {
		return nil, false, errors.Wrap(err, "encoding value for editing")
	}

	ext := ".txt"
	if len(f.Extensions) > 0 {
		ext = f.Extensions[0]
	}
	tmp, err := os.CreateTemp("", "strata-*"+ext)
	if err != nil {
		return nil, false, errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, false, errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return nil, false, errors.Wrap(err, "closing temp file")
	}

	if err := Open(ctx, tmp.Name(), s); err != nil {
		return nil, false, err
	}

	edited, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, false, errors.Wrap(err, "reading edited file")
	}
	if bytes.Equal(edited, data) {
		return v, false, nil
	}
	result, err = f.Decode(filepath.Base(tmp.Name()), edited)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// detectEditor returns the editor command and its arguments. The chain
// is $STRATA_EDITOR, $EDITOR, $VISUAL, nano, vi.
func detectEditor() []string {
	for _, env := range []string{"STRATA_EDITOR", "EDITOR", "VISUAL"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	if _, err := exec.LookPath("nano"); err == nil {
		return []string{"nano"}
	}
	return []string{"vi"}
}
