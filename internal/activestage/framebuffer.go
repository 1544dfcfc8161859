// Package activestage drives the receive-side active stage of an RDP
// session: the long-running loop that reads one framed PDU at a time off an
// already-authenticated connection, dispatches it through the transport
// stack or the fast-path processor, and keeps a framebuffer up to date.
package activestage

import (
	"sync"

	"github.com/nolan-ca/rdp-activestage/internal/region"
)

// Framebuffer is an owned RGBA-32 pixel buffer, mutated only by tile blits
// from the RFX sequence engine and otherwise safe for a renderer to read
// concurrently. Pixel format is fixed at construction time; there is no
// mid-session format change.
type Framebuffer struct {
	mu     sync.RWMutex
	width  uint16
	height uint16
	pixels []byte // width * height * 4, RGBA
	damage *region.Region
}

// NewFramebuffer allocates a framebuffer sized for a session whose desktop
// dimensions were negotiated during the connection sequence.
func NewFramebuffer(width, height uint16) *Framebuffer {
	return &Framebuffer{
		width:  width,
		height: height,
		pixels: make([]byte, int(width)*int(height)*4),
		damage: region.New(),
	}
}

// Width returns the framebuffer's width in pixels.
func (fb *Framebuffer) Width() uint16 { return fb.width }

// Height returns the framebuffer's height in pixels.
func (fb *Framebuffer) Height() uint16 { return fb.height }

// Snapshot returns a copy of the current pixel buffer and the bounding box
// of the most recently applied damage, safe to call while the active stage
// keeps mutating the live buffer concurrently.
func (fb *Framebuffer) Snapshot() ([]byte, region.Rect) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := make([]byte, len(fb.pixels))
	copy(out, fb.pixels)
	return out, fb.damage.BoundingBox()
}

// BeginFrame implements rfx.Framebuffer. It resets the accumulated damage
// region ahead of the tile blits for one RFX frame, so Snapshot reflects
// only the frame currently in progress rather than a running total across
// every frame the session has ever decoded.
func (fb *Framebuffer) BeginFrame() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.damage = region.New()
}

// BlitTile implements rfx.Framebuffer. pixelsBGRA is the RFX tile decoder's
// native output order; each pixel is rearranged to RGBA on the way into the
// destination buffer, clipped to clip's rectangles intersected with dst. dst
// is unioned into the frame's accumulated damage region rather than
// replacing it, since a TileSet blits many tiles per frame.
func (fb *Framebuffer) BlitTile(pixelsBGRA []byte, dst region.Rect, clip *region.Region) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.damage.UnionRectangle(dst)

	for _, rect := range clip.Rectangles() {
		area := intersect(dst, rect)
		if area.Width() == 0 || area.Height() == 0 {
			continue
		}

		for y := area.Top; y < area.Bottom; y++ {
			tileY := y - dst.Top
			for x := area.Left; x < area.Right; x++ {
				tileX := x - dst.Left
				srcOff := (int(tileY)*64 + int(tileX)) * 4
				if srcOff+4 > len(pixelsBGRA) {
					continue
				}
				dstOff := (int(y)*int(fb.width) + int(x)) * 4
				if dstOff+4 > len(fb.pixels) {
					continue
				}

				b, g, r, a := pixelsBGRA[srcOff], pixelsBGRA[srcOff+1], pixelsBGRA[srcOff+2], pixelsBGRA[srcOff+3]
				fb.pixels[dstOff+0] = r
				fb.pixels[dstOff+1] = g
				fb.pixels[dstOff+2] = b
				fb.pixels[dstOff+3] = a
			}
		}
	}
}

func intersect(a, b region.Rect) region.Rect {
	left := maxU16(a.Left, b.Left)
	top := maxU16(a.Top, b.Top)
	right := minU16(a.Right, b.Right)
	bottom := minU16(a.Bottom, b.Bottom)
	if right < left {
		right = left
	}
	if bottom < top {
		bottom = top
	}
	return region.Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}
