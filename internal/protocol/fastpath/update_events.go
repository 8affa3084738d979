package fastpath

import (
	"encoding/binary"
	"io"
)

// PaletteEntry represents TS_PALETTE_ENTRY (MS-RDPBCGR 2.2.9.1.1.3.1.1.1).
type PaletteEntry struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

func (e *PaletteEntry) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &e.Red); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &e.Green); err != nil {
		return err
	}

	return binary.Read(wire, binary.LittleEndian, &e.Blue)
}

// paletteUpdateData represents TS_UPDATE_PALETTE_DATA
// (MS-RDPBCGR 2.2.9.1.1.3.1.1).
type paletteUpdateData struct {
	updateType   uint16
	numberColors uint16

	PaletteEntries []PaletteEntry
}

func (d *paletteUpdateData) Deserialize(wire io.Reader) error {
	var padding uint16

	if err := binary.Read(wire, binary.LittleEndian, &d.updateType); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &padding); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &d.numberColors); err != nil {
		return err
	}

	d.PaletteEntries = make([]PaletteEntry, d.numberColors)
	for i := range d.PaletteEntries {
		if err := d.PaletteEntries[i].Deserialize(wire); err != nil {
			return err
		}
	}

	return nil
}

// CompressedDataHeader represents TS_CD_HEADER (MS-RDPBCGR 2.2.9.1.1.3.1.2.3),
// present before interleaved-RLE bitmap data unless NO_BITMAP_COMPRESSION_HDR
// was negotiated.
type CompressedDataHeader struct {
	CbCompFirstRowSize uint16
	CbCompMainBodySize uint16
	CbScanWidth        uint16
	CbUncompressedSize uint16
}

func (h *CompressedDataHeader) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &h.CbCompFirstRowSize); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &h.CbCompMainBodySize); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &h.CbScanWidth); err != nil {
		return err
	}

	return binary.Read(wire, binary.LittleEndian, &h.CbUncompressedSize)
}

// BitmapDataFlag is the flags field of TS_BITMAP_DATA.
type BitmapDataFlag uint16

const (
	// BitmapDataFlagCompression marks interleaved-RLE compressed data.
	BitmapDataFlagCompression BitmapDataFlag = 0x0001
	// BitmapDataFlagNoHDR means the TS_CD_HEADER is omitted.
	BitmapDataFlagNoHDR BitmapDataFlag = 0x0400
)

// BitmapData represents TS_BITMAP_DATA (MS-RDPBCGR 2.2.9.1.1.3.1.2.2):
// one destination rectangle of a bitmap update.
type BitmapData struct {
	DestLeft     uint16
	DestTop      uint16
	DestRight    uint16
	DestBottom   uint16
	Width        uint16
	Height       uint16
	BitsPerPixel uint16
	Flags        BitmapDataFlag
	BitmapLength uint16

	CompressedHeader *CompressedDataHeader
	BitmapDataStream []byte
}

func (d *BitmapData) Deserialize(wire io.Reader) error {
	for _, field := range []*uint16{
		&d.DestLeft, &d.DestTop, &d.DestRight, &d.DestBottom,
		&d.Width, &d.Height, &d.BitsPerPixel,
	} {
		if err := binary.Read(wire, binary.LittleEndian, field); err != nil {
			return err
		}
	}

	if err := binary.Read(wire, binary.LittleEndian, &d.Flags); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &d.BitmapLength); err != nil {
		return err
	}

	streamLength := int(d.BitmapLength)

	d.CompressedHeader = nil
	if d.Flags&BitmapDataFlagCompression != 0 && d.Flags&BitmapDataFlagNoHDR == 0 {
		d.CompressedHeader = &CompressedDataHeader{}
		if err := d.CompressedHeader.Deserialize(wire); err != nil {
			return err
		}

		// bitmapLength counts the TS_CD_HEADER when it is present.
		streamLength -= 8
	}

	d.BitmapDataStream = make([]byte, streamLength)
	if _, err := io.ReadFull(wire, d.BitmapDataStream); err != nil {
		return err
	}

	return nil
}

// bitmapUpdateData represents TS_UPDATE_BITMAP_DATA
// (MS-RDPBCGR 2.2.9.1.1.3.1.2.1).
type bitmapUpdateData struct {
	updateType       uint16
	numberRectangles uint16

	Rectangles []BitmapData
}

func (d *bitmapUpdateData) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &d.updateType); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &d.numberRectangles); err != nil {
		return err
	}

	d.Rectangles = make([]BitmapData, d.numberRectangles)
	for i := range d.Rectangles {
		if err := d.Rectangles[i].Deserialize(wire); err != nil {
			return err
		}
	}

	return nil
}

// pointerPositionUpdateData represents TS_POINTERPOSATTRIBUTE
// (MS-RDPBCGR 2.2.9.1.1.4.2).
type pointerPositionUpdateData struct {
	xPos uint16
	yPos uint16
}

func (d *pointerPositionUpdateData) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &d.xPos); err != nil {
		return err
	}

	return binary.Read(wire, binary.LittleEndian, &d.yPos)
}

// colorPointerUpdateData represents TS_COLORPOINTERATTRIBUTE
// (MS-RDPBCGR 2.2.9.1.1.4.4): a 24 bpp cursor shape with 1 bpp AND mask.
type colorPointerUpdateData struct {
	cacheIndex    uint16
	xPos          uint16
	yPos          uint16
	width         uint16
	height        uint16
	lengthAndMask uint16
	lengthXorMask uint16

	xorMaskData []byte
	andMaskData []byte
}

func (d *colorPointerUpdateData) Deserialize(wire io.Reader) error {
	for _, field := range []*uint16{
		&d.cacheIndex, &d.xPos, &d.yPos, &d.width, &d.height,
		&d.lengthAndMask, &d.lengthXorMask,
	} {
		if err := binary.Read(wire, binary.LittleEndian, field); err != nil {
			return err
		}
	}

	d.xorMaskData = make([]byte, d.lengthXorMask)
	if _, err := io.ReadFull(wire, d.xorMaskData); err != nil {
		return err
	}

	d.andMaskData = make([]byte, d.lengthAndMask)
	if _, err := io.ReadFull(wire, d.andMaskData); err != nil {
		return err
	}

	// trailing pad byte is optional on the wire
	return nil
}
