package mjpeg

import (
	"bytes"
	"sort"
)

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA

	// SOF0..SOF15 share 0xC0-0xCF with three non-frame codes.
	markerDHT = 0xC4
	markerJPG = 0xC8
	markerDAC = 0xCC
)

var (
	soiMarker = []byte{markerPrefix, markerSOI}
	eoiMarker = []byte{markerPrefix, markerEOI}
)

// Candidate is a [Start, End) byte range bounded by an SOI at Start and the
// nearest following EOI, with End just past that EOI.
type Candidate struct {
	Start int
	End   int
}

func (c Candidate) Len() int {
	return c.End - c.Start
}

// FindCandidates returns one candidate for every SOI in buf that has an EOI
// after it. Candidates may overlap: an MJPEG buffer usually holds the tail
// of one frame, whole frames, and the head of the next.
func FindCandidates(buf []byte) []Candidate {
	starts := markerOffsets(buf, soiMarker)
	if len(starts) == 0 {
		return nil
	}
	ends := markerOffsets(buf, eoiMarker)
	if len(ends) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(starts))
	for _, s := range starts {
		i := sort.SearchInts(ends, s+2)
		if i == len(ends) {
			break // starts are ascending, later ones have no EOI either
		}
		candidates = append(candidates, Candidate{Start: s, End: ends[i] + 2})
	}
	return candidates
}

func markerOffsets(buf, marker []byte) []int {
	var offsets []int
	for pos := 0; pos < len(buf); {
		i := bytes.Index(buf[pos:], marker)
		if i < 0 {
			break
		}
		offsets = append(offsets, pos+i)
		pos += i + 1
	}
	return offsets
}

// rankCandidates orders candidates best first. With preferBand, those whose
// length lies in [bandMin, bandMax] come first. Within each group larger
// wins, then the later (more recent) start.
func rankCandidates(candidates []Candidate, bandMin, bandMax int, preferBand bool) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	inBand := func(c Candidate) bool {
		return preferBand && c.Len() >= bandMin && c.Len() <= bandMax
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if ia, ib := inBand(a), inBand(b); ia != ib {
			return ia
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		return a.Start > b.Start
	})
	return ranked
}

// isFrameMarker reports whether code is a Start-Of-Frame marker code.
func isFrameMarker(code byte) bool {
	if code < 0xC0 || code > 0xCF {
		return false
	}
	return code != markerDHT && code != markerJPG && code != markerDAC
}

// ValidFrame reports whether frame contains both a Start-Of-Frame and a
// Start-Of-Scan marker.
func ValidFrame(frame []byte) bool {
	var sawSOF, sawSOS bool
	for i := 0; i+1 < len(frame); i++ {
		if frame[i] != markerPrefix {
			continue
		}
		switch code := frame[i+1]; {
		case code == markerSOS:
			sawSOS = true
		case isFrameMarker(code):
			sawSOF = true
		}
		if sawSOF && sawSOS {
			return true
		}
	}
	return false
}
