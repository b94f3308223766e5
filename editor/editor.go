// Package editor implements the six-slot staging state machine behind the
// page builder: file selection with previews, reordering, deletion,
// drag-to-reposition, zoom, and serialization into the multipart create
// request the server consumes. The embedded browser builder mirrors this
// logic; keeping it here makes the gesture math testable and lets
// cmd/valentine publish pages from the terminal.
package editor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"regexp"
)

// SlotCount is the fixed number of image slots. Deleting a slot clears it
// in place; the sequence never shrinks.
const SlotCount = 6

// Zoom factors are clamped to this range.
const (
	MinZoom = 0.5
	MaxZoom = 3.0
)

var (
	// ErrIncompleteSelection is returned by Serialize while any slot is empty.
	ErrIncompleteSelection = errors.New("all six slots need an image")
	// ErrInvalidSlug is returned by Serialize for a slug the server would
	// reject anyway.
	ErrInvalidSlug = errors.New("slug must contain only lowercase letters, numbers, and hyphens")
	// ErrBadSlot is returned for a slot index outside [0, SlotCount).
	ErrBadSlot = errors.New("slot index out of range")
	// ErrNoDrag is returned by Drag when no gesture is active.
	ErrNoDrag = errors.New("no drag gesture in progress")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Position is an image's focal point within its slot, in percent of the
// rendered dimensions. The zero-adjustment value is the center, 50/50.
type Position struct {
	X float64
	Y float64
}

// String renders the position the way the page record stores it.
func (p Position) String() string {
	return fmt.Sprintf("%g%% %g%%", p.X, p.Y)
}

// Slot is one of the six fixed positions in the editor. An empty slot has
// nil Data.
type Slot struct {
	Name     string   // original filename, kept for the upload part
	Data     []byte   // owned file bytes; released on replace or delete
	Preview  string   // data URI for display
	Position Position // percent offsets, 50/50 = centered
	Zoom     float64
}

// Filled reports whether the slot holds an image.
func (s *Slot) Filled() bool {
	return s.Data != nil
}

type dragState struct {
	slot   int
	base   Position // position when the gesture began
	startX float64  // pointer coordinates at gesture start, px
	startY float64
	width  float64 // rendered slot dimensions, px
	height float64
}

// Editor holds the builder's staged state: six slots plus at most one
// active drag gesture. It is single-goroutine by design, like the UI
// thread it models.
type Editor struct {
	slots [SlotCount]Slot
	drag  *dragState
}

// New returns an editor with six empty slots.
func New() *Editor {
	e := &Editor{}
	for i := range e.slots {
		e.slots[i] = emptySlot()
	}
	return e
}

func emptySlot() Slot {
	return Slot{Position: Position{X: 50, Y: 50}, Zoom: 1.0}
}

// Slot returns a copy of slot i for inspection.
func (e *Editor) Slot(i int) (Slot, error) {
	if i < 0 || i >= SlotCount {
		return Slot{}, ErrBadSlot
	}
	return e.slots[i], nil
}

// SelectFile loads an image into slot i, replacing whatever was there.
// The slot's position resets to center and its zoom to 1.0; the previous
// file's bytes are released.
func (e *Editor) SelectFile(i int, name string, r io.Reader) error {
	if i < 0 || i >= SlotCount {
		return ErrBadSlot
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %q: %w", name, err)
	}
	mime := http.DetectContentType(data)
	e.slots[i] = emptySlot()
	e.slots[i].Name = name
	e.slots[i].Data = data
	e.slots[i].Preview = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return nil
}

// Delete clears slot i in place. The slot keeps its index; nothing shifts.
func (e *Editor) Delete(i int) error {
	if i < 0 || i >= SlotCount {
		return ErrBadSlot
	}
	e.slots[i] = emptySlot()
	return nil
}

// Swap exchanges the entire state of two slots. The builder UI only
// exposes adjacent swaps (move-left / move-right) but the operation is
// general, and applying it twice restores the original order.
func (e *Editor) Swap(i, j int) error {
	if i < 0 || i >= SlotCount || j < 0 || j >= SlotCount {
		return ErrBadSlot
	}
	e.slots[i], e.slots[j] = e.slots[j], e.slots[i]
	return nil
}

// MoveLeft swaps slot i with its left neighbor, if any.
func (e *Editor) MoveLeft(i int) error {
	if i <= 0 {
		if i < 0 {
			return ErrBadSlot
		}
		return nil
	}
	return e.Swap(i, i-1)
}

// MoveRight swaps slot i with its right neighbor, if any.
func (e *Editor) MoveRight(i int) error {
	if i >= SlotCount-1 {
		if i >= SlotCount {
			return ErrBadSlot
		}
		return nil
	}
	return e.Swap(i, i+1)
}

// StartDrag begins a reposition gesture on slot i. x and y are the pointer
// coordinates, width and height the slot's rendered dimensions in the same
// units. The slot's current position is the gesture's baseline. Works the
// same for mouse and touch; the caller just feeds pointer coordinates.
func (e *Editor) StartDrag(i int, x, y, width, height float64) error {
	if i < 0 || i >= SlotCount {
		return ErrBadSlot
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("drag needs positive slot dimensions, got %gx%g", width, height)
	}
	e.drag = &dragState{
		slot:   i,
		base:   e.slots[i].Position,
		startX: x,
		startY: y,
		width:  width,
		height: height,
	}
	return nil
}

// Drag updates the active gesture with the pointer's current coordinates.
// Pixel deltas convert to percentages of the slot's rendered size with the
// sign inverted: dragging right reveals the image's left side, so the x
// value decreases. Both axes clamp to [0, 100]. Every call recomputes from
// the gesture baseline, so jittery pointer streams cannot accumulate error.
func (e *Editor) Drag(x, y float64) error {
	if e.drag == nil {
		return ErrNoDrag
	}
	d := e.drag
	dx := (x - d.startX) / d.width * 100
	dy := (y - d.startY) / d.height * 100
	e.slots[d.slot].Position = Position{
		X: clamp(d.base.X-dx, 0, 100),
		Y: clamp(d.base.Y-dy, 0, 100),
	}
	return nil
}

// EndDrag finishes the gesture. The slot keeps its last position.
func (e *Editor) EndDrag() {
	e.drag = nil
}

// Zoom adds delta to slot i's zoom factor, rounds the result to one
// decimal, and clamps it to [MinZoom, MaxZoom].
func (e *Editor) Zoom(i int, delta float64) error {
	if i < 0 || i >= SlotCount {
		return ErrBadSlot
	}
	z := math.Round((e.slots[i].Zoom+delta)*10) / 10
	e.slots[i].Zoom = clamp(z, MinZoom, MaxZoom)
	return nil
}

// Positions returns the six serialized slot positions in order.
func (e *Editor) Positions() []string {
	out := make([]string, SlotCount)
	for i := range e.slots {
		out[i] = e.slots[i].Position.String()
	}
	return out
}

// Zooms returns the six zoom factors in order.
func (e *Editor) Zooms() []float64 {
	out := make([]float64, SlotCount)
	for i := range e.slots {
		out[i] = e.slots[i].Zoom
	}
	return out
}

// Complete reports whether every slot holds an image.
func (e *Editor) Complete() bool {
	for i := range e.slots {
		if !e.slots[i].Filled() {
			return false
		}
	}
	return true
}

// Serialize produces the multipart create-request body: the six files in
// slot order under the images field, plus the parallel imagePositions and
// imageZooms arrays and the page's text fields. The slug is pre-validated
// client-side; the server re-validates authoritatively.
func (e *Editor) Serialize(slug, relationshipYears, youtubeURL string) (*bytes.Buffer, string, error) {
	if !slugPattern.MatchString(slug) {
		return nil, "", ErrInvalidSlug
	}
	if !e.Complete() {
		return nil, "", ErrIncompleteSelection
	}

	positions, err := json.Marshal(e.Positions())
	if err != nil {
		return nil, "", err
	}
	zooms, err := json.Marshal(e.Zooms())
	if err != nil {
		return nil, "", err
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := map[string]string{
		"slug":           slug,
		"imagePositions": string(positions),
		"imageZooms":     string(zooms),
	}
	if relationshipYears != "" {
		fields["relationshipYears"] = relationshipYears
	}
	if youtubeURL != "" {
		fields["youtubeUrl"] = youtubeURL
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	for i := range e.slots {
		part, err := w.CreateFormFile("images", e.slots[i].Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(e.slots[i].Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
