package models

import (
	"strconv"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	json "github.com/goccy/go-json"
)

const heatmapSlots = 7 * 24

// Heatmap tracks per-user activity over weekday/hour slots using a sparse
// layout: the bitmap holds slots hit exactly once, the counts map only
// holds slots that deviate from the bitmap default (count > 1).
// Thread-safe: all public methods acquire h.mu internally.
type Heatmap struct {
	mu     sync.Mutex
	active *roaring.Bitmap
	counts map[uint32]int64
}

func NewHeatmap() *Heatmap {
	return &Heatmap{
		active: roaring.New(),
		counts: make(map[uint32]int64),
	}
}

// SlotOf maps a timestamp to its weekday*24+hour bucket in UTC.
func SlotOf(ts time.Time) uint32 {
	utc := ts.UTC()
	return uint32(int(utc.Weekday())*24 + utc.Hour())
}

func (h *Heatmap) Mark(ts time.Time) {
	slot := SlotOf(ts)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active.Contains(slot) {
		if c, ok := h.counts[slot]; ok {
			h.counts[slot] = c + 1
		} else {
			h.counts[slot] = 2
		}
		return
	}
	h.active.Add(slot)
}

// Grid reconstructs the full 7x24 activity matrix from bitmap + sparse counts.
func (h *Heatmap) Grid() [7][24]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var grid [7][24]int64
	it := h.active.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if slot >= heatmapSlots {
			continue
		}
		count := int64(1)
		if c, ok := h.counts[slot]; ok {
			count = c
		}
		grid[slot/24][slot%24] = count
	}
	return grid
}

func (h *Heatmap) Clone() *Heatmap {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := NewHeatmap()
	cp.active = h.active.Clone()
	for k, v := range h.counts {
		cp.counts[k] = v
	}
	return cp
}

// MarshalJSON flattens the heatmap to a slot -> count map so snapshots
// stay readable and independent of the bitmap wire format.
func (h *Heatmap) MarshalJSON() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	flat := make(map[string]int64, h.active.GetCardinality())
	it := h.active.Iterator()
	for it.HasNext() {
		slot := it.Next()
		count := int64(1)
		if c, ok := h.counts[slot]; ok {
			count = c
		}
		flat[strconv.FormatUint(uint64(slot), 10)] = count
	}
	return json.Marshal(flat)
}

func (h *Heatmap) UnmarshalJSON(data []byte) error {
	var flat map[string]int64
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = roaring.New()
	h.counts = make(map[uint32]int64)
	for k, v := range flat {
		slot, err := strconv.ParseUint(k, 10, 32)
		if err != nil || slot >= heatmapSlots || v <= 0 {
			continue
		}
		h.active.Add(uint32(slot))
		if v > 1 {
			h.counts[uint32(slot)] = v
		}
	}
	return nil
}
