package las

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
)

var (
	ErrDecompressorNotFound = errors.New("laz decompressor program not found")
)

// Expands a compressed LAZ file into a plain LAS file. The returned cleanup removes the output.
type Decompressor interface {
	Decompress(ctx context.Context, lazPath string) (lasPath string, cleanup func(), err error)
}

// Runs an external laszip compatible program (`<program> -i in.laz -o out.las`)
type ExternalDecompressor struct {
	ProgramPath string
	TempDir     string
}

func NewExternalDecompressor(programPath string, tempDir string) *ExternalDecompressor {
	return &ExternalDecompressor{
		ProgramPath: programPath,
		TempDir:     tempDir,
	}
}

// Resolves the program on PATH, used to fail before any background work starts
func (d *ExternalDecompressor) Check() error {
	if d.ProgramPath == "" {
		return ErrDecompressorNotFound
	}
	if _, err := exec.LookPath(d.ProgramPath); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecompressorNotFound, d.ProgramPath, err)
	}
	return nil
}

func (d *ExternalDecompressor) Decompress(ctx context.Context, lazPath string) (string, func(), error) {
	if err := d.Check(); err != nil {
		return "", nil, err
	}

	outDir, err := os.MkdirTemp(d.TempDir, "lasviewer-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(outDir); err != nil {
			glog.Warningf("removing temporary folder %s failed: %v", outDir, err)
		}
	}

	base := strings.TrimSuffix(filepath.Base(lazPath), filepath.Ext(lazPath))
	outPath := filepath.Join(outDir, base+".las")

	startTime := time.Now()
	cmdParams := []string{
		"-i", lazPath,
		"-o", outPath,
	}
	runCmd := exec.CommandContext(ctx, d.ProgramPath, cmdParams...)

	var cmdStdout, cmdStderr bytes.Buffer
	runCmd.Stdout = &cmdStdout
	runCmd.Stderr = &cmdStderr

	if err := runCmd.Run(); err != nil {
		glog.Errorln("run failed", runCmd.String(), "cmd-stdout", cmdStdout.String(), "cmd-stderr", cmdStderr.String(), err.Error())
		cleanup()
		return "", nil, err
	}
	glog.V(1).Infoln("run decompressor success", runCmd.String(), "latency_ms", time.Since(startTime).Milliseconds())

	return outPath, cleanup, nil
}
