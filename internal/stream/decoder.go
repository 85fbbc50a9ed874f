package stream

import (
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxLineBytes bounds a single buffered line.
const maxLineBytes = 1 << 20

// Stats counts what a Decoder has seen so far.
type Stats struct {
	Bytes     int
	Chunks    int
	Accepted  map[Kind]int
	Ignored   int // Well-formed records with an unknown kind.
	Malformed int // Lines that failed to parse.
}

// Records returns the total number of accepted records.
func (s Stats) Records() int {
	n := 0
	for _, c := range s.Accepted {
		n += c
	}
	return n
}

func (s Stats) clone() Stats {
	out := s
	out.Accepted = make(map[Kind]int, len(s.Accepted))
	for k, v := range s.Accepted {
		out.Accepted[k] = v
	}
	return out
}

// Decoder turns arbitrarily split chunks of an NDJSON body into records.
//
// Bytes of a multi-byte character that straddle a chunk boundary are held
// back until the rest arrives, and text after the last newline is held
// until the line is complete. Consumed bytes are never decoded twice.
type Decoder struct {
	utf8     transform.Transformer
	carry    []byte          // Undecoded tail of a partial UTF-8 sequence.
	pending  strings.Builder // Decoded text after the last newline.
	maxLine  int
	overflow bool // Discarding an oversized line up to its newline.
	buf      []byte
	stats    Stats
	logger   *slog.Logger
}

// NewDecoder returns a Decoder ready for the first chunk.
func NewDecoder() *Decoder {
	return &Decoder{
		utf8:    unicode.UTF8.NewDecoder(),
		maxLine: maxLineBytes,
		stats:   Stats{Accepted: map[Kind]int{}},
		logger:  slog.Default(),
	}
}

// Feed consumes one chunk and returns the records completed by it, in order.
// Only the newly decoded text is scanned for line breaks.
func (d *Decoder) Feed(chunk []byte) []Record {
	d.stats.Bytes += len(chunk)
	d.stats.Chunks++

	text := d.decode(chunk, false)
	if d.overflow {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			return nil
		}
		text = text[i+1:]
		d.overflow = false
	}

	idx := strings.LastIndexByte(text, '\n')
	if idx < 0 {
		d.hold(text)
		return nil
	}
	d.pending.WriteString(text[:idx])
	complete := d.pending.String()
	d.pending.Reset()
	d.hold(text[idx+1:])
	return d.lines(complete)
}

// hold buffers text of an unfinished line. A line longer than maxLine is
// counted as malformed and dropped through its newline.
func (d *Decoder) hold(text string) {
	if d.pending.Len()+len(text) <= d.maxLine {
		d.pending.WriteString(text)
		return
	}
	d.stats.Malformed++
	d.logger.Debug("dropping oversized stream line", "limit", d.maxLine)
	d.pending.Reset()
	d.overflow = true
}

// Flush ends the stream: a dangling partial character becomes U+FFFD and
// an unterminated final line is parsed like any other.
func (d *Decoder) Flush() []Record {
	tail := d.decode(nil, true)
	if d.overflow {
		d.overflow = false
		return nil
	}
	d.pending.WriteString(tail)
	text := d.pending.String()
	d.pending.Reset()
	return d.lines(text)
}

// Stats returns a snapshot of the counters.
func (d *Decoder) Stats() Stats {
	return d.stats.clone()
}

func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}
	if len(src) == 0 && !atEOF {
		return ""
	}

	// Invalid bytes expand to the 3-byte replacement character.
	if need := 3*len(src) + 4; len(d.buf) < need {
		d.buf = make([]byte, need)
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.utf8.Transform(d.buf, src, atEOF)
		out.Write(d.buf[:nDst])
		src = src[nSrc:]
		if err == transform.ErrShortDst {
			if nDst == 0 && nSrc == 0 {
				d.buf = make([]byte, 2*len(d.buf))
			}
			continue
		}
		if err == transform.ErrShortSrc {
			d.carry = append([]byte(nil), src...)
		}
		break
	}
	return out.String()
}

func (d *Decoder) lines(text string) []Record {
	var out []Record
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rec, ok, err := parseLine(line)
		if err != nil {
			d.stats.Malformed++
			d.logger.Debug("skipping malformed stream line", "error", err)
			continue
		}
		if !ok {
			d.stats.Ignored++
			continue
		}
		d.stats.Accepted[rec.Kind]++
		out = append(out, rec)
	}
	return out
}
