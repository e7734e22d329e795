package motion

import (
	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/frame"
)

// trackState is an internal track plus the bookkeeping the tracker needs
// that frame.Track does not expose publicly: whether it has ever been
// matched, for the velocity-EMA skip-on-first-match rule.
type trackState struct {
	track       frame.Track
	everMatched bool
}

// tracker is the two-pass IoU object tracker described in §4.2: active
// tracks are matched first, then lost tracks get a second chance, and
// finally unmatched detections above TrackHighThreshold spawn new tracks.
// Not safe for concurrent use; owned exclusively by one motion.Detector.
type tracker struct {
	nextID int32
	active []*trackState
	lost   []*trackState
}

func newTracker() *tracker {
	return &tracker{nextID: 1}
}

const iouMatchThreshold = 0.3

// update advances the tracker by one frame's detections and returns the
// resulting active tracks plus how many were newly created or newly lost
// this frame.
func (t *tracker) update(dets []detection, cfg config.MotionDetectorConfig) ([]frame.Track, int, int) {
	matchedDet := make([]bool, len(dets))

	unmatchedActive := t.matchPass(t.active, dets, matchedDet)
	unmatchedLost := t.matchPass(t.lost, dets, matchedDet)

	var newActive []*trackState
	for _, ts := range t.active {
		if ts.track.FramesLost == 0 {
			newActive = append(newActive, ts)
		}
	}
	for _, ts := range t.lost {
		if ts.track.FramesLost == 0 {
			newActive = append(newActive, ts)
		}
	}

	newlyLostCount := len(unmatchedActive)

	var newLost []*trackState
	newLost = append(newLost, unmatchedActive...)
	for _, ts := range unmatchedLost {
		if ts.track.FramesLost <= int(cfg.TrackBufferSize) {
			newLost = append(newLost, ts)
		}
	}

	var newCount int
	for i, matched := range matchedDet {
		if matched {
			continue
		}
		if dets[i].confidence < cfg.TrackHighThreshold {
			continue
		}
		ts := &trackState{track: frame.Track{
			TrackID:    t.nextID,
			Box:        dets[i].box,
			Confidence: dets[i].confidence,
			ClassID:    dets[i].classID,
		}}
		t.nextID++
		newActive = append(newActive, ts)
		newCount++
	}

	t.active = newActive
	t.lost = newLost

	out := make([]frame.Track, 0, len(t.active))
	for _, ts := range t.active {
		out = append(out, ts.track)
	}
	return out, newCount, newlyLostCount
}

// matchPass matches unmatched detections against candidates by greedy
// highest-IoU argmax per candidate (threshold 0.3), updating each matched
// candidate's box/velocity in place and bumping FramesLost on the rest. It
// returns the subset of candidates that remained unmatched.
func (t *tracker) matchPass(candidates []*trackState, dets []detection, matchedDet []bool) []*trackState {
	var unmatched []*trackState
	for _, ts := range candidates {
		bestIdx := -1
		bestIoU := iouMatchThreshold
		for i, d := range dets {
			if matchedDet[i] {
				continue
			}
			score := iou(ts.track.Box, d.box)
			if score > bestIoU {
				bestIoU = score
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			ts.track.FramesLost++
			unmatched = append(unmatched, ts)
			continue
		}

		matchedDet[bestIdx] = true
		d := dets[bestIdx]

		if ts.everMatched {
			newVX := (d.box.X + d.box.W/2) - (ts.track.Box.X + ts.track.Box.W/2)
			newVY := (d.box.Y + d.box.H/2) - (ts.track.Box.Y + ts.track.Box.H/2)
			ts.track.VelocityX = velocityAlpha*newVX + (1-velocityAlpha)*ts.track.VelocityX
			ts.track.VelocityY = velocityAlpha*newVY + (1-velocityAlpha)*ts.track.VelocityY
		}
		// First match after creation: velocity stays (0,0) until the
		// second match — the EMA update is skipped (§9 design note).

		ts.track.Box = d.box
		ts.track.Confidence = d.confidence
		ts.track.ClassID = d.classID
		ts.track.FramesLost = 0
		ts.everMatched = true
	}
	return unmatched
}
