package render

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
)

var (
	ErrCapacityExceeded = errors.New("instance buffer capacity exceeded")
	ErrIndexOutOfRange  = errors.New("instance index out of range")
)

// Host side instance arrays feeding a Surface. All arrays are indexed by insertion order and
// always have the same length.
//
// The buffer is not synchronized: while a read is in progress only the reading goroutine
// appends, afterwards only the goroutine owning the surface touches it.
type InstanceBuffer struct {
	surface       Surface
	instanceScale float32
	capacity      int

	transforms  []Transform
	intensities []uint16
	scalars     []float32
	colors      []Color
}

func NewInstanceBuffer(surface Surface, instanceScale float64) *InstanceBuffer {
	if instanceScale <= 0 {
		instanceScale = 1
	}
	return &InstanceBuffer{
		surface:       surface,
		instanceScale: float32(instanceScale),
	}
}

// Drops the current contents and sizes both host arrays and GPU storage for capacity instances.
// Must be called from the goroutine owning the surface.
func (b *InstanceBuffer) Reserve(capacity int) error {
	if capacity < 0 {
		capacity = 0
	}
	b.capacity = capacity
	b.transforms = make([]Transform, 0, capacity)
	b.intensities = make([]uint16, 0, capacity)
	b.scalars = make([]float32, 0, capacity)
	b.colors = make([]Color, 0, capacity)

	return b.surface.ReserveInstanceCapacity(capacity)
}

// Adds an instance and returns its index. Appending beyond the reserved capacity is a sizing
// bug of the caller and fails without modifying the buffer.
func (b *InstanceBuffer) Append(position r3.Vector, intensity uint16, color r3.Vector) (int, error) {
	index := len(b.transforms)
	if index >= b.capacity {
		return index, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, b.capacity)
	}

	b.transforms = append(b.transforms, b.transform(position))
	b.intensities = append(b.intensities, intensity)
	b.scalars = append(b.scalars, float32(intensity)/65535)
	b.colors = append(b.colors, toColor(color))
	return index, nil
}

func (b *InstanceBuffer) UpdatePositionAt(index int, position r3.Vector) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	b.transforms[index] = b.transform(position)
	return nil
}

func (b *InstanceBuffer) UpdateScalarAt(index int, value float32) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	b.scalars[index] = value
	return nil
}

func (b *InstanceBuffer) UpdateColorAt(index int, color r3.Vector) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	b.colors[index] = toColor(color)
	return nil
}

// Uploads every host array to the surface. Must be called from the goroutine owning the surface.
func (b *InstanceBuffer) FlushToGPU() error {
	return b.surface.UploadInstanceData(b.transforms, b.scalars, b.colors)
}

// Empties the host arrays and shrinks the GPU storage to zero instances
func (b *InstanceBuffer) Clear() error {
	b.capacity = 0
	b.transforms = nil
	b.intensities = nil
	b.scalars = nil
	b.colors = nil
	return b.surface.Clear()
}

func (b *InstanceBuffer) Len() int {
	return len(b.transforms)
}

func (b *InstanceBuffer) Capacity() int {
	return b.capacity
}

// Raw intensities in insertion order. The slice is shared with the buffer.
func (b *InstanceBuffer) Intensities() []uint16 {
	return b.intensities
}

func (b *InstanceBuffer) Scalars() []float32 {
	return b.scalars
}

func (b *InstanceBuffer) Colors() []Color {
	return b.colors
}

func (b *InstanceBuffer) Transforms() []Transform {
	return b.transforms
}

// Translation of the instance at index
func (b *InstanceBuffer) PositionAt(index int) (r3.Vector, error) {
	if err := b.checkIndex(index); err != nil {
		return r3.Vector{}, err
	}
	m := b.transforms[index]
	return r3.Vector{X: float64(m[12]), Y: float64(m[13]), Z: float64(m[14])}, nil
}

func (b *InstanceBuffer) checkIndex(index int) error {
	if index < 0 || index >= len(b.transforms) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(b.transforms))
	}
	return nil
}

// uniform scale with translation in the last column
func (b *InstanceBuffer) transform(position r3.Vector) Transform {
	s := b.instanceScale
	return Transform{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		float32(position.X), float32(position.Y), float32(position.Z), 1,
	}
}

func toColor(c r3.Vector) Color {
	return Color{float32(c.X), float32(c.Y), float32(c.Z)}
}
