package shaping

import (
	"golang.org/x/text/unicode/bidi"
)

// Direction is the progression direction of a text run.
type Direction uint8

const (
	// DirectionLTR is left-to-right text (Latin, Cyrillic, ...).
	DirectionLTR Direction = iota

	// DirectionRTL is right-to-left text (Arabic, Hebrew).
	DirectionRTL
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionLTR:
		return "LTR"
	case DirectionRTL:
		return "RTL"
	default:
		return "Unknown"
	}
}

// Segment is a contiguous run of text with a single bidi direction.
// Start and End are byte offsets into the original string.
type Segment struct {
	Text      string
	Start     int
	End       int
	Direction Direction
	Level     int
}

// Segmenter splits mixed-direction text into uniform runs using the
// Unicode bidirectional algorithm. Shape each run separately and lay the
// runs out in the order returned.
type Segmenter struct {
	// Base is the paragraph base direction. With DirectionLTR the
	// direction of a neutral paragraph is inferred from its first strong
	// character; with DirectionRTL neutral paragraphs default to RTL.
	Base Direction
}

// NewSegmenter returns a Segmenter with an LTR base direction.
func NewSegmenter() *Segmenter {
	return &Segmenter{Base: DirectionLTR}
}

// Segment splits text into bidi runs, returned in visual order, left to
// right. Uniform text yields one segment; empty text yields nil.
func (s *Segmenter) Segment(text string) []Segment {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	offsets := byteOffsets(text, runes)

	defaultDir := bidi.Neutral
	if s.Base == DirectionRTL {
		defaultDir = bidi.RightToLeft
	}

	var p bidi.Paragraph
	_, _ = p.SetString(text, bidi.DefaultDirection(defaultDir))

	ordering, err := p.Order()
	if err != nil {
		// Degenerate input; treat as one run in the base direction.
		return []Segment{{Text: text, Start: 0, End: len(text), Direction: s.Base, Level: int(s.Base)}}
	}

	segments := make([]Segment, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)

		// Pos returns rune indices, start and end inclusive.
		startRune, endRune := run.Pos()
		if startRune < 0 || endRune >= len(runes) {
			continue
		}

		dir := DirectionLTR
		level := 0
		if run.Direction() == bidi.RightToLeft {
			dir = DirectionRTL
			level = 1
		}

		startByte := offsets[startRune]
		endByte := offsets[endRune+1]
		segments = append(segments, Segment{
			Text:      text[startByte:endByte],
			Start:     startByte,
			End:       endByte,
			Direction: dir,
			Level:     level,
		})
	}

	return segments
}

// byteOffsets maps rune index i to the byte offset of that rune, with one
// extra trailing entry equal to len(text).
func byteOffsets(text string, runes []rune) []int {
	offsets := make([]int, len(runes)+1)
	offset := 0
	for i, r := range runes {
		offsets[i] = offset
		offset += len(string(r))
	}
	offsets[len(runes)] = len(text)
	return offsets
}
