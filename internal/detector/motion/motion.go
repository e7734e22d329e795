// Package motion implements the object-motion and pixel-motion detector
// described in §4.2: letterbox preprocessing, proposal decoding and NMS, an
// IoU tracker, and the two-term motion score.
//
// Grounded on original_source/cpp/.../Detectors/MotionDetector.cpp.
package motion

import (
	"math"
	"sort"

	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/errors"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/model"
)

const (
	numClasses     = 80
	numProposals   = 8400
	pixelDownW     = 640
	pixelDownH     = 360
	pixelThreshold = 25
	velocityAlpha  = 0.7

	objAlpha = 0.3
	objBeta  = 0.5
	objGamma = 0.2
)

// Detector is the motion detector and its owned IoU tracker. Independently
// stateful and not safe for concurrent use within a single frame's analysis.
type Detector struct {
	cfg    config.MotionDetectorConfig
	models *model.Registry

	tracker  *tracker
	prevGray []byte
}

// New creates a motion detector bound to cfg and the shared model registry.
func New(cfg config.MotionDetectorConfig, models *model.Registry) *Detector {
	return &Detector{cfg: cfg, models: models, tracker: newTracker()}
}

// Reset clears all tracker and previous-frame state.
func (d *Detector) Reset() {
	d.tracker = newTracker()
	d.prevGray = nil
}

// Detect runs the motion detector against res.
func (d *Detector) Detect(res *frame.Resource) (frame.MotionResult, error) {
	size := int(d.cfg.InputWidth)
	tensor, box, ok := res.Tensor(frame.MotionTensor)
	if !ok {
		tensor, box = letterbox(res.Frame, size)
		res.SetTensor(frame.MotionTensor, tensor, box)
	}

	outputs, err := d.models.Infer("motion", []model.Tensor{{
		Shape: []int{1, size, size, 3},
		Data:  tensor,
	}})
	if err != nil {
		return frame.MotionResult{}, errors.NewDetectorError("motion", err)
	}

	detections := decodeProposals(outputs, d.cfg.ConfidenceThreshold, box)
	detections = nonMaxSuppression(detections, d.cfg.NMSThreshold)

	active, newCount, lostCount := d.tracker.update(detections, d.cfg)

	pixelMotion := d.calculatePixelMotion(res.Frame)
	objectMotion := computeObjectMotionScore(active, newCount, lostCount)

	final := float64(d.cfg.PixelMotionWeight)*pixelMotion + float64(d.cfg.ObjectMotionWeight)*objectMotion
	if final > 1 {
		final = 1
	}

	return frame.MotionResult{
		Score:        float32(final),
		PixelMotion:  pixelMotion,
		ObjectMotion: objectMotion,
		ActiveTracks: active,
		NewTracks:    newCount,
		LostTracks:   lostCount,
	}, nil
}

// detection is a single post-NMS proposal in original-frame coordinates.
type detection struct {
	box        frame.BoundingBox
	confidence float32
	classID    int
}

func decodeProposals(outputs []model.Tensor, confThreshold float32, box frame.LetterboxInfo) []detection {
	if len(outputs) == 0 {
		return nil
	}
	data := outputs[0].Data
	stride := 4 + numClasses
	n := len(data) / stride

	dets := make([]detection, 0, n/10)
	for i := 0; i < n; i++ {
		base := i * stride
		if base+stride > len(data) {
			break
		}
		bestScore := float32(0)
		bestClass := -1
		for c := 0; c < numClasses; c++ {
			s := data[base+4+c]
			if s > bestScore {
				bestScore = s
				bestClass = c
			}
		}
		if bestScore < confThreshold {
			continue
		}

		cx, cy, w, h := data[base], data[base+1], data[base+2], data[base+3]
		x := float64(cx) - float64(w)/2
		y := float64(cy) - float64(h)/2

		origX, origY := inverseLetterbox(x, y, box)
		origW2, origH2 := float64(w)/box.Scale, float64(h)/box.Scale

		dets = append(dets, detection{
			box:        frame.BoundingBox{X: origX, Y: origY, W: origW2, H: origH2},
			confidence: bestScore,
			classID:    bestClass,
		})
	}
	return dets
}

// nonMaxSuppression keeps the highest-confidence detection in each cluster
// of boxes overlapping above nmsThreshold.
func nonMaxSuppression(dets []detection, nmsThreshold float32) []detection {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].confidence > dets[j].confidence })

	kept := make([]detection, 0, len(dets))
	suppressed := make([]bool, len(dets))
	for i := range dets {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		for j := i + 1; j < len(dets); j++ {
			if suppressed[j] {
				continue
			}
			if iou(dets[i].box, dets[j].box) > float64(nmsThreshold) {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b frame.BoundingBox) float64 {
	ax1, ay1, ax2, ay2 := a.X, a.Y, a.X+a.W, a.Y+a.H
	bx1, by1, bx2, by2 := b.X, b.Y, b.X+b.W, b.Y+b.H

	ix1, iy1 := math.Max(ax1, bx1), math.Max(ay1, by1)
	ix2, iy2 := math.Min(ax2, bx2), math.Min(ay2, by2)

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

func computeObjectMotionScore(active []frame.Track, newCount, lostCount int) float64 {
	count := float64(len(active))
	var speedSum float64
	for _, t := range active {
		speedSum += math.Hypot(t.VelocityX, t.VelocityY)
	}
	avgSpeed := 0.0
	if count > 0 {
		avgSpeed = speedSum / count
	}

	term1 := math.Min(count/10, 1)
	term2 := math.Min(avgSpeed/20, 1)
	term3 := math.Min(float64(newCount+lostCount)/10, 1)

	return objAlpha*term1 + objBeta*term2 + objGamma*term3
}

// calculatePixelMotion downscales to 640x360 grayscale, blurs, diffs against
// the previous frame, thresholds, and measures the changed-pixel fraction.
func (d *Detector) calculatePixelMotion(f frame.Frame) float64 {
	gray := grayscaleResize(f, pixelDownW, pixelDownH)
	blurred := gaussianBlur5x5(gray, pixelDownW, pixelDownH)

	if d.prevGray == nil {
		d.prevGray = blurred
		return 0
	}

	diff := absDiffThreshold(blurred, d.prevGray, pixelThreshold)
	diff = erodeDilate3x3(diff, pixelDownW, pixelDownH)

	d.prevGray = blurred

	var changed int
	for _, v := range diff {
		if v != 0 {
			changed++
		}
	}
	total := pixelDownW * pixelDownH
	ratio := float64(changed) / float64(total)
	score := ratio * 50
	if score > 1 {
		score = 1
	}
	return score
}

func letterbox(f frame.Frame, target int) ([]float32, frame.LetterboxInfo) {
	if f.Width == 0 || f.Height == 0 {
		return make([]float32, target*target*3), frame.LetterboxInfo{Scale: 1}
	}
	scale := math.Min(float64(target)/float64(f.Width), float64(target)/float64(f.Height))
	scaledW := int(float64(f.Width) * scale)
	scaledH := int(float64(f.Height) * scale)
	offX := (target - scaledW) / 2
	offY := (target - scaledH) / 2

	channels := f.Channels
	if channels == 0 {
		channels = 1
	}
	out := make([]float32, target*target*3)
	for y := 0; y < scaledH; y++ {
		srcY := y * f.Height / scaledH
		for x := 0; x < scaledW; x++ {
			srcX := x * f.Width / scaledW
			srcIdx := (srcY*f.Width + srcX) * channels
			dstIdx := ((y+offY)*target + (x + offX)) * 3
			for c := 0; c < 3; c++ {
				sc := c
				if sc >= channels {
					sc = channels - 1
				}
				if srcIdx+sc < len(f.Pixels) && dstIdx+c < len(out) {
					out[dstIdx+c] = float32(f.Pixels[srcIdx+sc]) / 255.0
				}
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

func grayscaleResize(f frame.Frame, outW, outH int) []byte {
	out := make([]byte, outW*outH)
	if f.Width == 0 || f.Height == 0 || len(f.Pixels) == 0 {
		return out
	}
	channels := f.Channels
	if channels == 0 {
		channels = 1
	}
	for y := 0; y < outH; y++ {
		srcY := y * f.Height / outH
		for x := 0; x < outW; x++ {
			srcX := x * f.Width / outW
			idx := (srcY*f.Width + srcX) * channels
			var sum int
			for c := 0; c < channels && idx+c < len(f.Pixels); c++ {
				sum += int(f.Pixels[idx+c])
			}
			out[y*outW+x] = byte(sum / channels)
		}
	}
	return out
}

// gaussianBlur5x5 smooths gray with the 5x5 binomial Gaussian kernel
// ([1 4 6 4 1] on each axis); taps outside the image are skipped and the
// remaining weights renormalized.
func gaussianBlur5x5(gray []byte, w, h int) []byte {
	weights := [5]int{1, 4, 6, 4, 1}
	out := make([]byte, len(gray))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, wsum int
			for dy := -2; dy <= 2; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -2; dx <= 2; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					wt := weights[dy+2] * weights[dx+2]
					sum += wt * int(gray[ny*w+nx])
					wsum += wt
				}
			}
			out[y*w+x] = byte(sum / wsum)
		}
	}
	return out
}

func absDiffThreshold(a, b []byte, threshold int) []byte {
	out := make([]byte, len(a))
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		if d > threshold {
			out[i] = 255
		}
	}
	return out
}

// erodeDilate3x3 applies a 3x3 erosion (min) followed by a 3x3 dilation
// (max) to remove isolated noise pixels while preserving larger regions.
func erodeDilate3x3(mask []byte, w, h int) []byte {
	eroded := rankFilter3x3(mask, w, h, true)
	return rankFilter3x3(eroded, w, h, false)
}

func rankFilter3x3(mask []byte, w, h int, useMin bool) []byte {
	out := make([]byte, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			val := mask[y*w+x]
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					n := mask[ny*w+nx]
					if useMin && n < val {
						val = n
					}
					if !useMin && n > val {
						val = n
					}
				}
			}
			out[y*w+x] = val
		}
	}
	return out
}
