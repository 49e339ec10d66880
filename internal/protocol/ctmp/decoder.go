package ctmp

import "fmt"

// Event is one decoder outcome: either a validated Frame or a Drop reason
// for a discarded-but-framable message.
type Event struct {
	Frame *Frame
	Drop  DropReason
}

// Decoder reassembles CTMP messages out of an unstructured byte stream.
// It owns an accumulation buffer so headers and payloads split across
// reads are handled transparently. A Decoder serves exactly one stream;
// once Feed returns an error the stream can no longer be segmented and
// the connection must be closed.
type Decoder struct {
	limits Limits
	buf    []byte
	fatal  error
}

func NewDecoder(limits Limits) *Decoder {
	if limits.MaxPayloadBytes <= 0 || limits.MaxPayloadBytes > MaxPayloadLen {
		limits.MaxPayloadBytes = MaxPayloadLen
	}
	return &Decoder{limits: limits}
}

// Buffered returns the number of bytes received but not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends chunk to the accumulation buffer and extracts every complete
// message it now holds. The returned events preserve stream order. A non-nil
// error means framing is lost for good; any events returned alongside it were
// extracted before the stream desynced.
func (d *Decoder) Feed(chunk []byte) ([]Event, error) {
	if d.fatal != nil {
		return nil, d.fatal
	}
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		if len(d.buf) < HeaderSize {
			return events, nil
		}
		head, err := DecodeHeader(d.buf[:HeaderSize])
		if err != nil {
			d.fatal = fmt.Errorf("%w: %w", ErrStreamDesynced, err)
			return events, d.fatal
		}
		if int(head.Length) > d.limits.MaxPayloadBytes {
			d.fatal = fmt.Errorf("%w: %w: declared %d, limit %d",
				ErrStreamDesynced, ErrPayloadTooLarge, head.Length, d.limits.MaxPayloadBytes)
			return events, d.fatal
		}
		total := HeaderSize + int(head.Length)
		if len(d.buf) < total {
			return events, nil
		}

		raw := make([]byte, total)
		copy(raw, d.buf[:total])
		d.buf = d.buf[total:]

		if reason := Validate(head, raw); reason != DropNone {
			events = append(events, Event{Drop: reason})
			continue
		}
		events = append(events, Event{Frame: &Frame{Header: head, Raw: raw}})
	}
}
