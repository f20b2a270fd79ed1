package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/samber/lo"
)

var lasExtensions = []string{".las", ".laz"}

type FileFinder interface {
	GetLasFilesToProcess(opts *loader.LoaderOptions) ([]string, error)
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

func (f *StandardFileFinder) GetLasFilesToProcess(opts *loader.LoaderOptions) ([]string, error) {
	// If folder processing is not enabled then las file is given by -input flag, otherwise look for las in -input folder
	// eventually excluding nested folders if Recursive flag is disabled
	if !opts.FolderProcessing {
		return []string{opts.Input}, nil
	}

	return f.getLasFilesFromInputFolder(opts)
}

func IsLasFile(path string) bool {
	return lo.Contains(lasExtensions, strings.ToLower(filepath.Ext(path)))
}

func (f *StandardFileFinder) getLasFilesFromInputFolder(opts *loader.LoaderOptions) ([]string, error) {
	baseInfo, err := os.Stat(opts.Input)
	if err != nil {
		return nil, err
	}
	if !baseInfo.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", opts.Input)
	}

	var paths []string
	err = filepath.Walk(
		opts.Input,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && !opts.Recursive && !os.SameFile(info, baseInfo) {
				return filepath.SkipDir
			}
			if !info.IsDir() {
				paths = append(paths, path)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	return lo.Filter(paths, func(path string, _ int) bool {
		return IsLasFile(path)
	}), nil
}
