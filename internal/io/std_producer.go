package io

import (
	"sync"

	"github.com/ecopia-map/lasviewer/internal/loader"
)

type StandardProducer struct {
	files   []string
	options *loader.LoaderOptions
}

func NewStandardProducer(files []string, options *loader.LoaderOptions) *StandardProducer {
	return &StandardProducer{
		files:   files,
		options: options,
	}
}

// Submits a WorkUnit per file to the provided work channel.
// Closes the channel when all work is submitted.
func (p *StandardProducer) Produce(work chan *WorkUnit, wg *sync.WaitGroup) {
	for _, file := range p.files {
		work <- &WorkUnit{
			Path: file,
			Opts: p.options,
		}
	}
	close(work)
	wg.Done()
}
