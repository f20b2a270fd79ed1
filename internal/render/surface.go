package render

import (
	"sync"

	"github.com/golang/glog"
)

// 4x4 column major matrix as consumed by instanced draw calls
type Transform [16]float32

// RGB color with components in [0,1]
type Color [3]float32

// GPU backed storage for instance data. Implementations are bound to the goroutine owning the
// graphics context and must only be called from it.
type Surface interface {
	ReserveInstanceCapacity(n int) error
	UploadInstanceData(transforms []Transform, scalars []float32, colors []Color) error
	Clear() error
}

type SurfaceCall string

const (
	CallReserve SurfaceCall = "reserve"
	CallUpload  SurfaceCall = "upload"
	CallClear   SurfaceCall = "clear"
)

// Surface keeping the uploaded instances in memory. Used when no window is available and to
// observe which calls reach the GPU side.
type HeadlessSurface struct {
	capacity   int
	transforms []Transform
	scalars    []float32
	colors     []Color
	calls      []SurfaceCall
	sync.Mutex
}

func NewHeadlessSurface() *HeadlessSurface {
	return &HeadlessSurface{}
}

func (s *HeadlessSurface) ReserveInstanceCapacity(n int) error {
	s.Lock()
	defer s.Unlock()

	s.calls = append(s.calls, CallReserve)
	s.capacity = n
	s.transforms = make([]Transform, 0, n)
	s.scalars = make([]float32, 0, n)
	s.colors = make([]Color, 0, n)
	return nil
}

func (s *HeadlessSurface) UploadInstanceData(transforms []Transform, scalars []float32, colors []Color) error {
	s.Lock()
	defer s.Unlock()

	s.calls = append(s.calls, CallUpload)
	if len(transforms) > s.capacity {
		glog.V(1).Infof("headless surface growing from %d to %d instances", s.capacity, len(transforms))
		s.capacity = len(transforms)
	}
	s.transforms = append(s.transforms[:0], transforms...)
	s.scalars = append(s.scalars[:0], scalars...)
	s.colors = append(s.colors[:0], colors...)
	return nil
}

func (s *HeadlessSurface) Clear() error {
	s.Lock()
	defer s.Unlock()

	s.calls = append(s.calls, CallClear)
	s.capacity = 0
	s.transforms = nil
	s.scalars = nil
	s.colors = nil
	return nil
}

func (s *HeadlessSurface) Capacity() int {
	s.Lock()
	defer s.Unlock()
	return s.capacity
}

// Number of instances uploaded by the last upload
func (s *HeadlessSurface) InstanceCount() int {
	s.Lock()
	defer s.Unlock()
	return len(s.transforms)
}

func (s *HeadlessSurface) Instances() ([]Transform, []float32, []Color) {
	s.Lock()
	defer s.Unlock()
	return append([]Transform(nil), s.transforms...), append([]float32(nil), s.scalars...), append([]Color(nil), s.colors...)
}

func (s *HeadlessSurface) Calls() []SurfaceCall {
	s.Lock()
	defer s.Unlock()
	return append([]SurfaceCall(nil), s.calls...)
}
