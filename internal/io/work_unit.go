package io

import (
	"github.com/ecopia-map/lasviewer/internal/loader"
)

// Contains the minimal data needed to check a single LAS/LAZ file
type WorkUnit struct {
	Path string
	Opts *loader.LoaderOptions
}
