package imaging

import (
	"bytes"
	"fmt"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

const markerSOI = 0xD8

func parseSegments(data []byte) (*jpegstructure.SegmentList, error) {
	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, err
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("unexpected media context %T", mc)
	}
	return sl, nil
}

// extractEXIF returns the APP1 Exif segment of a JPEG stream, or nil when
// there is none or the stream does not parse.
func extractEXIF(data []byte) *jpegstructure.Segment {
	if len(data) == 0 {
		return nil
	}
	sl, err := parseSegments(data)
	if err != nil {
		return nil
	}
	_, seg, err := sl.FindExif()
	if err != nil {
		return nil
	}
	return seg
}

// insertSegment places seg directly after the SOI marker of a JPEG stream.
func insertSegment(jpegData []byte, seg *jpegstructure.Segment) ([]byte, error) {
	sl, err := parseSegments(jpegData)
	if err != nil {
		return nil, fmt.Errorf("parse jpeg segments: %w", err)
	}

	segments := sl.Segments()
	if len(segments) == 0 || segments[0].MarkerId != markerSOI {
		return nil, fmt.Errorf("jpeg stream does not start with SOI")
	}

	out := make([]*jpegstructure.Segment, 0, len(segments)+1)
	out = append(out, segments[0], seg)
	out = append(out, segments[1:]...)

	var buf bytes.Buffer
	if err := jpegstructure.NewSegmentList(out).Write(&buf); err != nil {
		return nil, fmt.Errorf("write jpeg segments: %w", err)
	}
	return buf.Bytes(), nil
}
