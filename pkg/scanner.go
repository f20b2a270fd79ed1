package pkg

import (
	"errors"
	goio "io"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/ecopia-map/lasviewer/internal/io"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/ecopia-map/lasviewer/tools"
	"github.com/golang/glog"
	"github.com/samber/lo"
)

type IScanner interface {
	RunScanner(opts *loader.LoaderOptions) ([]*io.HeaderReport, error)
}

// Checks the headers of many files concurrently and writes a JSON report
type Scanner struct {
	fileFinder tools.FileFinder
	output     goio.Writer
}

// output receives the report when no report file is configured
func NewScanner(fileFinder tools.FileFinder, output goio.Writer) IScanner {
	return &Scanner{
		fileFinder: fileFinder,
		output:     output,
	}
}

func (s *Scanner) RunScanner(opts *loader.LoaderOptions) ([]*io.HeaderReport, error) {
	lasFiles, err := s.fileFinder.GetLasFilesToProcess(opts)
	if err != nil {
		return nil, err
	}
	tools.LogOutput("Scanning", len(lasFiles), "files...")

	reports, scanErr := s.scanHeaders(lasFiles, opts)

	invalid := lo.CountBy(reports, func(r *io.HeaderReport) bool {
		return !r.Valid()
	})
	tools.LogOutput("Scan completed:", len(reports), "files,", invalid, "with problems")

	if err := s.writeReport(reports, opts); err != nil {
		return reports, err
	}
	return reports, scanErr
}

func (s *Scanner) scanHeaders(lasFiles []string, opts *loader.LoaderOptions) ([]*io.HeaderReport, error) {
	// a consumer goroutine per CPU unless configured
	numConsumers := runtime.NumCPU()
	if opts.ScanOptions != nil && opts.ScanOptions.Workers > 0 {
		numConsumers = opts.ScanOptions.Workers
	}

	// every file fits in the channels, so consumers quitting early never block the producer
	workChannel := make(chan *io.WorkUnit, len(lasFiles))
	reportChannel := make(chan *io.HeaderReport, len(lasFiles))

	// init channel where consumers can eventually submit errors that prevented them to finish the job
	errorChannel := make(chan error, numConsumers)

	var waitGroup sync.WaitGroup

	// add producer to waitgroup and launch producer goroutine
	waitGroup.Add(1)
	producer := io.NewStandardProducer(lasFiles, opts)
	go producer.Produce(workChannel, &waitGroup)

	// add consumers to waitgroup and launch them
	for i := 0; i < numConsumers; i++ {
		waitGroup.Add(1)
		consumer := io.NewStandardConsumer()
		go consumer.Consume(workChannel, reportChannel, errorChannel, &waitGroup)
	}

	// wait for producers and consumers to finish
	waitGroup.Wait()

	close(reportChannel)
	close(errorChannel)

	reports := make([]*io.HeaderReport, 0, len(lasFiles))
	for report := range reportChannel {
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Path < reports[j].Path
	})

	// find if there are errors in the error channel buffer
	withErrors := false
	for err := range errorChannel {
		glog.Errorln(err)
		withErrors = true
	}
	if withErrors {
		return reports, errors.New("errors raised during execution. Check console output for details")
	}

	return reports, nil
}

func (s *Scanner) writeReport(reports []*io.HeaderReport, opts *loader.LoaderOptions) error {
	content, err := tools.FmtJSONIndent(reports)
	if err != nil {
		return err
	}
	content = append(content, '\n')

	if opts.ScanOptions == nil || opts.ScanOptions.Output == "" {
		_, err := s.output.Write(content)
		return err
	}

	reportPath := opts.ScanOptions.Output
	if err := tools.CreateParentDirectory(reportPath); err != nil {
		return err
	}
	if err := os.WriteFile(reportPath, content, 0644); err != nil {
		return err
	}
	glog.Infoln("scan report written to", reportPath)
	return nil
}
