package tools

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/glog"
)

const DefaultConfigFileName = "lasviewer.yaml"

// Folder holding the default configuration file: LASVIEWER_WORKDIR when set, the source tree
// under test, the executable folder otherwise
func GetRootFolder() string {
	assetsFromEnv := os.Getenv("LASVIEWER_WORKDIR")
	if assetsFromEnv != "" {
		return assetsFromEnv
	} else if strings.HasSuffix(os.Args[0], ".test") || strings.HasSuffix(os.Args[0], ".test.exe") {
		_, b, _, _ := runtime.Caller(0)
		return filepath.Dir(filepath.Dir(b))
	} else {
		ex, err := os.Executable()
		if err != nil {
			glog.Warningln("cannot retrieve executable directory", err)
			return "."
		}
		return filepath.Dir(ex)
	}
}

func DefaultConfigPath() string {
	return filepath.Join(GetRootFolder(), DefaultConfigFileName)
}

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		err := os.MkdirAll(directory, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}

// Creates the parent folder of the given file path
func CreateParentDirectory(filePath string) error {
	return CreateDirectoryIfDoesNotExist(filepath.Dir(filePath))
}
