package proj4_coordinate_converter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ecopia-map/lasviewer/internal/converters"
	"github.com/golang/geo/r3"
	"github.com/golang/glog"
	proj "github.com/xeonx/proj4"
)

var (
	ErrUnknownSrid = errors.New("no projection definition for srid")
)

// Proj4 definitions of the reference systems known out of the box. UTM zones on WGS84 are
// generated on demand, anything else must be registered with Define.
var builtinDefinitions = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4978: "+proj=geocent +datum=WGS84 +units=m +no_defs",
	3395: "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +wktext +no_defs",
}

type epsgProjection struct {
	code       int
	definition string
	projection *proj.Proj
}

type Proj4CoordinateConverter struct {
	definitions map[int]string
	projections map[int]*epsgProjection
	sync.Mutex
}

func NewProj4CoordinateConverter() converters.CoordinateConverter {
	return newProj4CoordinateConverter()
}

func newProj4CoordinateConverter() *Proj4CoordinateConverter {
	definitions := make(map[int]string, len(builtinDefinitions))
	for code, def := range builtinDefinitions {
		definitions[code] = def
	}
	return &Proj4CoordinateConverter{
		definitions: definitions,
		projections: make(map[int]*epsgProjection),
	}
}

// Registers a custom proj4 definition for the given code, replacing any previous one
func (cc *Proj4CoordinateConverter) Define(srid int, definition string) {
	cc.Lock()
	defer cc.Unlock()

	cc.definitions[srid] = definition
	if p, ok := cc.projections[srid]; ok {
		p.projection.Close()
		delete(cc.projections, srid)
	}
}

// Returns the proj4 definition used for the code, generating UTM zone definitions for
// EPSG 32601-32660 (north) and 32701-32760 (south)
func (cc *Proj4CoordinateConverter) Definition(srid int) (string, error) {
	if def, ok := cc.definitions[srid]; ok {
		return def, nil
	}
	switch {
	case srid > 32600 && srid <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", srid-32600), nil
	case srid > 32700 && srid <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", srid-32700), nil
	}
	return "", fmt.Errorf("%w %d", ErrUnknownSrid, srid)
}

// Converts the input coordinate from the given srid to the target srid. Projections are
// initialized once per code and reused.
func (cc *Proj4CoordinateConverter) ConvertCoordinateSrid(sourceSrid int, targetSrid int, coord r3.Vector) (r3.Vector, error) {
	if sourceSrid == targetSrid {
		return coord, nil
	}

	cc.Lock()
	defer cc.Unlock()

	src, err := cc.getProjection(sourceSrid)
	if err != nil {
		return coord, err
	}
	dst, err := cc.getProjection(targetSrid)
	if err != nil {
		return coord, err
	}

	return convertPointCoordinates(src, dst, coord)
}

func (cc *Proj4CoordinateConverter) getProjection(srid int) (*epsgProjection, error) {
	if p, ok := cc.projections[srid]; ok {
		return p, nil
	}

	def, err := cc.Definition(srid)
	if err != nil {
		return nil, err
	}

	projection, err := proj.InitPlus(def)
	if err != nil {
		return nil, fmt.Errorf("init projection for srid %d: %w", srid, err)
	}
	glog.V(1).Infof("initialized projection %d: %s", srid, def)

	p := &epsgProjection{
		code:       srid,
		definition: def,
		projection: projection,
	}
	cc.projections[srid] = p
	return p, nil
}

func convertPointCoordinates(src, dst *epsgProjection, coord r3.Vector) (r3.Vector, error) {
	x := []float64{coord.X}
	y := []float64{coord.Y}
	z := []float64{coord.Z}

	if src.projection.IsLatLong() {
		x[0] = proj.DegToRad(x[0])
		y[0] = proj.DegToRad(y[0])
	}

	if err := proj.TransformRaw(src.projection, dst.projection, x, y, z); err != nil {
		return coord, fmt.Errorf("transform %d -> %d: %w", src.code, dst.code, err)
	}

	if dst.projection.IsLatLong() {
		x[0] = proj.RadToDeg(x[0])
		y[0] = proj.RadToDeg(y[0])
	}

	return r3.Vector{X: x[0], Y: y[0], Z: z[0]}, nil
}

// Releases the memory held by the projection objects
func (cc *Proj4CoordinateConverter) Cleanup() {
	cc.Lock()
	defer cc.Unlock()

	for code, p := range cc.projections {
		p.projection.Close()
		delete(cc.projections, code)
	}
}
