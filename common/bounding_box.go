// Package common - Shared detection primitives.
package common

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// BoundingBox represents one detection in pixel coordinates with its score and class tag.
//
// The label is kept as a float32 tag because detector heads emit class ids as
// floats or ints depending on the plugin convention.
type BoundingBox struct {
	Left       float32 `json:"left"`
	Top        float32 `json:"top"`
	Right      float32 `json:"right"`
	Bottom     float32 `json:"bottom"`
	Confidence float32 `json:"confidence"`
	Label      float32 `json:"label"`
}

// NewBoundingBox creates a bounding box from the six canonical box elements.
//
// Arguments:
//   - v: left, top, right, bottom, confidence, label.
//
// Returns:
//   - BoundingBox: The box.
func NewBoundingBox(v [6]float32) BoundingBox {
	return BoundingBox{
		Left:       v[0],
		Top:        v[1],
		Right:      v[2],
		Bottom:     v[3],
		Confidence: v[4],
		Label:      v[5],
	}
}

// Width returns the horizontal extent, never negative.
func (b BoundingBox) Width() float32 {
	return math32.Max(0, b.Right-b.Left)
}

// Height returns the vertical extent, never negative.
func (b BoundingBox) Height() float32 {
	return math32.Max(0, b.Bottom-b.Top)
}

// Area returns the box area in square pixels.
//
// Returns:
//   - float32: Width * Height, 0 for degenerate boxes.
//
// @example
// box := BoundingBox{Left: 0, Top: 0, Right: 10, Bottom: 20}
// box.Area() // 200
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// ClassID returns the label rounded to the nearest class index.
func (b BoundingBox) ClassID() int {
	return int(math32.Round(b.Label))
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("Object %d (confidence %f): (%.2f, %.2f), (%.2f, %.2f)",
		b.ClassID(), b.Confidence, b.Left, b.Top, b.Right, b.Bottom)
}

// ToRect converts the bounding box to an image.Rectangle.
//
// Returns:
//   - image.Rectangle: The truncated integer rectangle, canonicalized.
//
// @example
// box := BoundingBox{Left: 100.5, Top: 100.5, Right: 200.5, Bottom: 300.5}
// box.ToRect() // (100,100)-(200,300)
func (b BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right), int(b.Bottom)).Canon()
}

// Intersection calculates the overlapping area between two boxes.
//
// Arguments:
//   - other: The other bounding box.
//
// Returns:
//   - float32: The overlap area, 0 when the boxes are disjoint.
func (b BoundingBox) Intersection(other BoundingBox) float32 {
	w := math32.Min(b.Right, other.Right) - math32.Max(b.Left, other.Left)
	h := math32.Min(b.Bottom, other.Bottom) - math32.Max(b.Top, other.Top)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Union calculates the combined area covered by two boxes.
func (b BoundingBox) Union(other BoundingBox) float32 {
	return b.Area() + other.Area() - b.Intersection(other)
}

// IoU calculates the Intersection over Union between two boxes.
//
// Arguments:
//   - other: The other bounding box.
//
// Returns:
//   - float32: A value in [0, 1]; 0 when the union is empty.
//
// @example
// a := BoundingBox{Left: 0, Top: 0, Right: 100, Bottom: 100}
// c := BoundingBox{Left: 50, Top: 50, Right: 150, Bottom: 150}
// a.IoU(c) // ~0.143 (2500/17500)
func (b BoundingBox) IoU(other BoundingBox) float32 {
	union := b.Union(other)
	if union <= 0 {
		return 0
	}
	return b.Intersection(other) / union
}

// Scale maps the box from a resized image back to the source image.
//
// Arguments:
//   - fx: Horizontal factor that was applied to the source (resized/source).
//   - fy: Vertical factor that was applied to the source.
//
// Returns:
//   - BoundingBox: The box in source coordinates. Factors <= 0 leave it unchanged.
func (b BoundingBox) Scale(fx, fy float32) BoundingBox {
	if fx <= 0 || fy <= 0 {
		return b
	}
	b.Left /= fx
	b.Right /= fx
	b.Top /= fy
	b.Bottom /= fy
	return b
}
