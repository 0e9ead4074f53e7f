package filestore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	PageSize = 4096

	pageMagic = "XPG1" // XBF heap page v1

	pageTypeHeap uint8 = 1

	pageHeaderSize = 16
	slotSize       = 4

	// MaxFrameSize is the largest row frame a single page can hold.
	MaxFrameSize = PageSize - pageHeaderSize - slotSize

	deletedOffset = 0xFFFF
)

var errPageFull = errors.New("page: not enough free space")

// Page header layout (on disk):
//
// offset  size  field
// 0       4     magic "XPG1"
// 4       4     pageID (uint32)
// 8       1     pageType (1 = heap)
// 9       1     reserved
// 10      2     numSlots (uint16)
// 12      2     freeStart (uint16) - where next frame bytes can be written
// 14      2     reserved
// 16..    frame area...
//
// Slot directory is at the end of the page, each slot 4 bytes:
//   [offset uint16][length uint16]
//
// Invariants:
//   freeStart <= PageSize - numSlots*4
//   slot i is located at: PageSize - (i+1)*4
//   deleted slot: offset == 0xFFFF

// pageBuf is a 4KB page in memory.
type pageBuf []byte

// newEmptyHeapPage initializes a new heap page with given pageID.
func newEmptyHeapPage(pageID uint32) pageBuf {
	buf := make([]byte, PageSize)
	copy(buf[0:4], pageMagic)
	binary.LittleEndian.PutUint32(buf[4:8], pageID)
	buf[8] = pageTypeHeap
	binary.LittleEndian.PutUint16(buf[10:12], 0)
	binary.LittleEndian.PutUint16(buf[12:14], pageHeaderSize)
	return buf
}

// validate checks the fixed header fields of a page read from disk.
func (p pageBuf) validate(pageID uint32) error {
	if len(p) != PageSize {
		return fmt.Errorf("page %d: size %d", pageID, len(p))
	}
	if string(p[0:4]) != pageMagic {
		return fmt.Errorf("page %d: bad magic %q", pageID, p[0:4])
	}
	if got := p.pageID(); got != pageID {
		return fmt.Errorf("page %d: header claims id %d", pageID, got)
	}
	if p[8] != pageTypeHeap {
		return fmt.Errorf("page %d: unknown page type %d", pageID, p[8])
	}
	if int(p.freeStart()) > PageSize-int(p.numSlots())*slotSize {
		return fmt.Errorf("page %d: free space overlaps slot directory", pageID)
	}
	return nil
}

func (p pageBuf) pageID() uint32 {
	return binary.LittleEndian.Uint32(p[4:8])
}

func (p pageBuf) numSlots() uint16 {
	return binary.LittleEndian.Uint16(p[10:12])
}

func (p pageBuf) setNumSlots(n uint16) {
	binary.LittleEndian.PutUint16(p[10:12], n)
}

func (p pageBuf) freeStart() uint16 {
	return binary.LittleEndian.Uint16(p[12:14])
}

func (p pageBuf) setFreeStart(off uint16) {
	binary.LittleEndian.PutUint16(p[12:14], off)
}

// freeSpace is the number of bytes left between the frame area and the
// slot directory.
func (p pageBuf) freeSpace() int {
	return PageSize - int(p.numSlots())*slotSize - int(p.freeStart())
}

// slotPos returns the byte index in the page of slot i (0-based).
func slotPos(i uint16) int {
	return PageSize - int(i+1)*slotSize
}

// getSlot reads slot i (0-based): (offset, length).
func (p pageBuf) getSlot(i uint16) (uint16, uint16) {
	pos := slotPos(i)
	off := binary.LittleEndian.Uint16(p[pos : pos+2])
	length := binary.LittleEndian.Uint16(p[pos+2 : pos+4])
	return off, length
}

// setSlot writes slot i (0-based).
func (p pageBuf) setSlot(i uint16, off, length uint16) {
	pos := slotPos(i)
	binary.LittleEndian.PutUint16(p[pos:pos+2], off)
	binary.LittleEndian.PutUint16(p[pos+2:pos+4], length)
}

// insertFrame places an encoded row frame into the page and returns its
// slot index. It returns errPageFull if the frame does not fit.
// Frames are only ever appended; slot order is insertion order.
func (p pageBuf) insertFrame(frame []byte) (uint16, error) {
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return 0, fmt.Errorf("page: frame of %d bytes cannot be stored (max %d)", len(frame), MaxFrameSize)
	}
	if len(frame)+slotSize > p.freeSpace() {
		return 0, errPageFull
	}

	nSlots := p.numSlots()
	freeStart := p.freeStart()
	copy(p[freeStart:], frame)

	p.setNumSlots(nSlots + 1)
	p.setSlot(nSlots, freeStart, uint16(len(frame)))
	p.setFreeStart(freeStart + uint16(len(frame)))

	return nSlots, nil
}

// iterateFrames calls fn(slotIndex, frame) for each live slot in order.
// frame aliases the page buffer.
func (p pageBuf) iterateFrames(fn func(slot uint16, frame []byte) error) error {
	nSlots := p.numSlots()
	for i := uint16(0); i < nSlots; i++ {
		off, length := p.getSlot(i)
		if off == deletedOffset || length == 0 {
			continue
		}
		start := int(off)
		end := start + int(length)
		if start < pageHeaderSize || end > slotPos(nSlots-1) {
			return fmt.Errorf("page: corrupt slot %d", i)
		}
		if err := fn(i, p[start:end]); err != nil {
			return err
		}
	}
	return nil
}
