package pkg

import (
	goio "io"

	"github.com/ecopia-map/lasviewer/internal/las"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/ecopia-map/lasviewer/tools"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Prints a human readable summary of the header of every input file
type HeaderPrinter struct {
	fileFinder tools.FileFinder
	printer    *message.Printer
}

func NewHeaderPrinter(fileFinder tools.FileFinder) *HeaderPrinter {
	return &HeaderPrinter{
		fileFinder: fileFinder,
		printer:    message.NewPrinter(language.English),
	}
}

// Returns the number of files whose header could not be read or raised warnings
func (p *HeaderPrinter) Print(opts *loader.LoaderOptions, w goio.Writer) (int, error) {
	lasFiles, err := p.fileFinder.GetLasFilesToProcess(opts)
	if err != nil {
		return 0, err
	}

	problems := 0
	for _, filePath := range lasFiles {
		file, err := las.ReadFile(filePath)
		if err != nil {
			glog.Errorln(err)
			p.printer.Fprintf(w, "%s\n  error: %v\n\n", filePath, err)
			problems++
			continue
		}
		p.printFile(w, file)
		if len(file.Warnings) > 0 {
			problems++
		}
	}
	return problems, nil
}

func (p *HeaderPrinter) printFile(w goio.Writer, file *las.File) {
	h := file.Header
	pr := p.printer

	pr.Fprintf(w, "%s\n", file.Path)
	pr.Fprintf(w, "  version:             %s\n", h.Version())
	pr.Fprintf(w, "  system id:           %s\n", h.SystemID)
	pr.Fprintf(w, "  generating software: %s\n", h.GeneratingSoftware)
	pr.Fprintf(w, "  project id:          %s\n", h.ProjectID())
	pr.Fprintf(w, "  created:             day %d of %d\n", h.CreationDay, h.CreationYear)
	pr.Fprintf(w, "  file size:           %d bytes\n", file.Size)
	pr.Fprintf(w, "  header size:         %d bytes\n", h.HeaderSize)
	pr.Fprintf(w, "  vlr count:           %d\n", h.VlrCount)
	pr.Fprintf(w, "  point offset:        %d\n", h.PointOffset)
	pr.Fprintf(w, "  point format:        %d", h.PointFormat())
	if !h.PointFormatSupported() {
		pr.Fprintf(w, " (unsupported)")
	}
	pr.Fprintf(w, "\n")
	pr.Fprintf(w, "  point size:          %d bytes (%d extra)\n", h.PointSize, h.ExtraBytes())
	pr.Fprintf(w, "  compressed:          %t\n", h.Compressed())
	pr.Fprintf(w, "  point count:         %d\n", h.PointCount())
	pr.Fprintf(w, "  scale:               %s %s %s\n", exactDecimal(h.ScaleX), exactDecimal(h.ScaleY), exactDecimal(h.ScaleZ))
	pr.Fprintf(w, "  offset:              %s %s %s\n", exactDecimal(h.OffsetX), exactDecimal(h.OffsetY), exactDecimal(h.OffsetZ))
	pr.Fprintf(w, "  min:                 %.3f %.3f %.3f\n", h.MinX, h.MinY, h.MinZ)
	pr.Fprintf(w, "  max:                 %.3f %.3f %.3f\n", h.MaxX, h.MaxY, h.MaxZ)
	for _, warning := range file.Warnings {
		pr.Fprintf(w, "  warning:             %s\n", warning)
	}
	pr.Fprintf(w, "\n")
}

func exactDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}
