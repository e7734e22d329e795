// Package text implements the on-screen text detector described in §4.2:
// a binary probability mask, contour extraction, and a coverage/change
// score.
//
// Grounded on original_source/cpp/.../Detectors/TextDetector.cpp.
package text

import (
	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/errors"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/model"
)

const minContourArea = 10

// Detector is the text detector. Independently stateful and not safe for
// concurrent use by more than one analysis worker at a time.
type Detector struct {
	cfg    config.TextDetectorConfig
	models *model.Registry

	prevRegions []frame.TextRegion
}

// New creates a text detector bound to cfg and the shared model registry.
func New(cfg config.TextDetectorConfig, models *model.Registry) *Detector {
	return &Detector{cfg: cfg, models: models}
}

// Reset clears the previous-frame region state.
func (d *Detector) Reset() {
	d.prevRegions = nil
}

// Detect runs the text detector against res.
func (d *Detector) Detect(res *frame.Resource) (frame.TextResult, error) {
	w, h := int(d.cfg.DetInputWidth), int(d.cfg.DetInputHeight)
	tensor, box, ok := res.Tensor(frame.TextDetTensor)
	if !ok {
		tensor, box = letterbox(res.Frame, w, h)
		res.SetTensor(frame.TextDetTensor, tensor, box)
	}

	outputs, err := d.models.Infer("text_det", []model.Tensor{{
		Shape: []int{1, h, w},
		Data:  tensor,
	}})
	if err != nil {
		return frame.TextResult{}, errors.NewDetectorError("text", err)
	}
	if len(outputs) == 0 {
		return frame.TextResult{}, nil
	}

	mask := threshold(outputs[0].Data, d.cfg.DetThreshold)
	contours := extractContours(mask, w, h)

	regions := make([]frame.TextRegion, 0, len(contours))
	for _, c := range contours {
		if polygonArea(c) < minContourArea {
			continue
		}
		origPoly := make([][2]float64, len(c))
		for i, p := range c {
			ox, oy := inverseLetterbox(p[0], p[1], box)
			origPoly[i] = [2]float64{ox, oy}
		}
		regions = append(regions, frame.TextRegion{
			Polygon: origPoly,
			Box:     boundingBoxOf(origPoly),
		})
	}

	coverage := coverageRatio(regions, res.Frame.Width, res.Frame.Height)
	change := changeRatio(regions, d.prevRegions)
	d.prevRegions = regions

	score := d.cfg.Alpha*float32(coverage) + d.cfg.Beta*float32(change)

	return frame.TextResult{
		Score:         score,
		CoverageRatio: coverage,
		ChangeRatio:   change,
		Regions:       regions,
	}, nil
}

func threshold(data []float32, t float32) []bool {
	mask := make([]bool, len(data))
	for i, v := range data {
		mask[i] = v >= t
	}
	return mask
}

// extractContours finds axis-aligned bounding rectangles of 4-connected
// regions of set pixels in mask, returning each as a 4-point rectangle
// polygon. A simplified stand-in for full contour tracing — adequate since
// only area and a bounding polygon are used downstream.
func extractContours(mask []bool, w, h int) [][][2]float64 {
	visited := make([]bool, len(mask))
	var contours [][][2]float64

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !mask[idx] || visited[idx] {
				continue
			}

			minX, minY, maxX, maxY := x, y, x, y
			stack := [][2]int{{x, y}}
			visited[idx] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := p[0], p[1]
				if px < minX {
					minX = px
				}
				if px > maxX {
					maxX = px
				}
				if py < minY {
					minY = py
				}
				if py > maxY {
					maxY = py
				}
				neighbors := [4][2]int{{px + 1, py}, {px - 1, py}, {px, py + 1}, {px, py - 1}}
				for _, n := range neighbors {
					nx, ny := n[0], n[1]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					ni := ny*w + nx
					if mask[ni] && !visited[ni] {
						visited[ni] = true
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}

			contours = append(contours, [][2]float64{
				{float64(minX), float64(minY)},
				{float64(maxX + 1), float64(minY)},
				{float64(maxX + 1), float64(maxY + 1)},
				{float64(minX), float64(maxY + 1)},
			})
		}
	}
	return contours
}

func polygonArea(poly [][2]float64) float64 {
	if len(poly) < 3 {
		return 0
	}
	var sum float64
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += poly[i][0]*poly[j][1] - poly[j][0]*poly[i][1]
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

func boundingBoxOf(poly [][2]float64) frame.BoundingBox {
	if len(poly) == 0 {
		return frame.BoundingBox{}
	}
	minX, minY := poly[0][0], poly[0][1]
	maxX, maxY := poly[0][0], poly[0][1]
	for _, p := range poly[1:] {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}
	return frame.BoundingBox{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// coverageRatio rasterizes the union of region boxes over a coarse grid and
// returns the fraction of frame pixels covered.
func coverageRatio(regions []frame.TextRegion, frameW, frameH int) float64 {
	if frameW <= 0 || frameH <= 0 || len(regions) == 0 {
		return 0
	}
	const gridW, gridH = 64, 64
	covered := make([]bool, gridW*gridH)
	sx := float64(gridW) / float64(frameW)
	sy := float64(gridH) / float64(frameH)

	for _, r := range regions {
		x0 := clampInt(int(r.Box.X*sx), 0, gridW-1)
		y0 := clampInt(int(r.Box.Y*sy), 0, gridH-1)
		x1 := clampInt(int((r.Box.X+r.Box.W)*sx), 0, gridW-1)
		y1 := clampInt(int((r.Box.Y+r.Box.H)*sy), 0, gridH-1)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				covered[y*gridW+x] = true
			}
		}
	}

	var count int
	for _, c := range covered {
		if c {
			count++
		}
	}
	return float64(count) / float64(gridW*gridH)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// changeRatio implements §4.2's greedy IoU≥0.5 matching between current and
// previous text regions.
func changeRatio(curr, prev []frame.TextRegion) float64 {
	if len(prev) == 0 && len(curr) == 0 {
		return 0
	}
	if len(prev) == 0 {
		return 1
	}

	usedPrev := make([]bool, len(prev))
	matches := 0
	for _, c := range curr {
		bestIdx := -1
		bestIoU := 0.5
		for i, p := range prev {
			if usedPrev[i] {
				continue
			}
			score := boxIoU(c.Box, p.Box)
			if score >= bestIoU {
				bestIoU = score
				bestIdx = i
			}
		}
		if bestIdx != -1 {
			usedPrev[bestIdx] = true
			matches++
		}
	}

	n := len(curr)
	if len(prev) > n {
		n = len(prev)
	}
	if n == 0 {
		return 0
	}
	return 1 - float64(matches)/float64(n)
}

func boxIoU(a, b frame.BoundingBox) float64 {
	ax1, ay1, ax2, ay2 := a.X, a.Y, a.X+a.W, a.Y+a.H
	bx1, by1, bx2, by2 := b.X, b.Y, b.X+b.W, b.Y+b.H

	ix1, iy1 := max64(ax1, bx1), max64(ay1, by1)
	ix2, iy2 := min64(ax2, bx2), min64(ay2, by2)

	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func letterbox(f frame.Frame, targetW, targetH int) ([]float32, frame.LetterboxInfo) {
	if f.Width == 0 || f.Height == 0 || targetW == 0 || targetH == 0 {
		return make([]float32, targetW*targetH), frame.LetterboxInfo{Scale: 1}
	}
	scale := minF(float64(targetW)/float64(f.Width), float64(targetH)/float64(f.Height))
	scaledW := int(float64(f.Width) * scale)
	scaledH := int(float64(f.Height) * scale)
	offX := (targetW - scaledW) / 2
	offY := (targetH - scaledH) / 2

	channels := f.Channels
	if channels == 0 {
		channels = 1
	}
	out := make([]float32, targetW*targetH)
	for y := 0; y < scaledH; y++ {
		srcY := y * f.Height / scaledH
		for x := 0; x < scaledW; x++ {
			srcX := x * f.Width / scaledW
			srcIdx := (srcY*f.Width + srcX) * channels
			dstIdx := (y+offY)*targetW + (x + offX)
			var sum float32
			for c := 0; c < channels && srcIdx+c < len(f.Pixels); c++ {
				sum += float32(f.Pixels[srcIdx+c])
			}
			if dstIdx < len(out) {
				out[dstIdx] = sum / float32(channels) / 255.0
			}
		}
	}
	return out, frame.LetterboxInfo{Scale: scale, OffsetX: offX, OffsetY: offY}
}

func inverseLetterbox(x, y float64, box frame.LetterboxInfo) (float64, float64) {
	if box.Scale == 0 {
		return x, y
	}
	return (x - float64(box.OffsetX)) / box.Scale, (y - float64(box.OffsetY)) / box.Scale
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
