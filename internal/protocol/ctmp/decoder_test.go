package ctmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func mustEncode(t *testing.T, options byte, payload []byte) []byte {
	t.Helper()
	raw, err := EncodeFrame(options, payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return raw
}

func TestDecoderSingleFrame(t *testing.T) {
	raw := mustEncode(t, 0, []byte("one"))
	dec := NewDecoder(DefaultLimits())
	events, err := dec.Feed(raw)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(events) != 1 || events[0].Frame == nil {
		t.Fatalf("expected one frame event, got %+v", events)
	}
	if !bytes.Equal(events[0].Frame.Raw, raw) {
		t.Fatalf("raw bytes not identical to input")
	}
	if !bytes.Equal(events[0].Frame.Payload(), []byte("one")) {
		t.Fatalf("payload mismatch")
	}
	if dec.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", dec.Buffered())
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	raw := mustEncode(t, OptionSensitive, []byte("dripfed"))
	dec := NewDecoder(DefaultLimits())
	var got []Event
	for i := range raw {
		events, err := dec.Feed(raw[i : i+1])
		if err != nil {
			t.Fatalf("feed byte %d: %v", i, err)
		}
		got = append(got, events...)
	}
	if len(got) != 1 || got[0].Frame == nil {
		t.Fatalf("expected one frame event, got %+v", got)
	}
	if !bytes.Equal(got[0].Frame.Raw, raw) {
		t.Fatalf("reassembled frame differs from input")
	}
}

func TestDecoderCoalescedFrames(t *testing.T) {
	first := mustEncode(t, 0, []byte("first"))
	second := mustEncode(t, 0, []byte("second"))
	third := mustEncode(t, 0, []byte("third"))

	chunk := append(append(append([]byte{}, first...), second...), third[:5]...)
	dec := NewDecoder(DefaultLimits())
	events, err := dec.Feed(chunk)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two complete frames, got %d", len(events))
	}
	events, err = dec.Feed(third[5:])
	if err != nil {
		t.Fatalf("feed remainder: %v", err)
	}
	if len(events) != 1 || !bytes.Equal(events[0].Frame.Payload(), []byte("third")) {
		t.Fatalf("expected trailing frame, got %+v", events)
	}
}

func TestDecoderZeroLengthPayload(t *testing.T) {
	raw := mustEncode(t, 0, nil)
	dec := NewDecoder(DefaultLimits())
	events, err := dec.Feed(raw)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(events) != 1 || events[0].Frame == nil {
		t.Fatalf("expected one frame event, got %+v", events)
	}
	if len(events[0].Frame.Payload()) != 0 {
		t.Fatalf("expected empty payload")
	}
}

func TestDecoderInvalidMagicIsFatal(t *testing.T) {
	raw := mustEncode(t, 0, []byte("x"))
	raw[0] = 0x00
	dec := NewDecoder(DefaultLimits())
	events, err := dec.Feed(raw)
	if !errors.Is(err, ErrInvalidMagic) || !errors.Is(err, ErrStreamDesynced) {
		t.Fatalf("expected desync with ErrInvalidMagic, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	// The decoder stays failed for the rest of the stream.
	if _, err := dec.Feed(mustEncode(t, 0, []byte("y"))); !errors.Is(err, ErrStreamDesynced) {
		t.Fatalf("expected decoder to stay desynced, got %v", err)
	}
}

func TestDecoderOversizeLengthIsFatal(t *testing.T) {
	raw := mustEncode(t, 0, make([]byte, 17))
	dec := NewDecoder(Limits{MaxPayloadBytes: 16})
	_, err := dec.Feed(raw)
	if !errors.Is(err, ErrPayloadTooLarge) || !errors.Is(err, ErrStreamDesynced) {
		t.Fatalf("expected desync with ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecoderMaxLengthBoundary(t *testing.T) {
	raw := mustEncode(t, 0, make([]byte, 16))
	dec := NewDecoder(Limits{MaxPayloadBytes: 16})
	events, err := dec.Feed(raw)
	if err != nil {
		t.Fatalf("feed at limit: %v", err)
	}
	if len(events) != 1 || events[0].Frame == nil {
		t.Fatalf("expected frame at exact limit, got %+v", events)
	}
}

func TestDecoderResyncAfterChecksumDrop(t *testing.T) {
	good1 := mustEncode(t, OptionSensitive, []byte("good-1"))
	bad := mustEncode(t, OptionSensitive, []byte("tampered"))
	binary.BigEndian.PutUint16(bad[4:6], 0xDEAD)
	good2 := mustEncode(t, 0, []byte("good-2"))

	stream := append(append(append([]byte{}, good1...), bad...), good2...)
	dec := NewDecoder(DefaultLimits())
	events, err := dec.Feed(stream)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected three events, got %d", len(events))
	}
	if events[0].Frame == nil || !bytes.Equal(events[0].Frame.Payload(), []byte("good-1")) {
		t.Fatalf("first frame missing")
	}
	if events[1].Drop != DropChecksumMismatch {
		t.Fatalf("expected checksum drop, got %+v", events[1])
	}
	if events[2].Frame == nil || !bytes.Equal(events[2].Frame.Payload(), []byte("good-2")) {
		t.Fatalf("stream did not resync after drop")
	}
}

func TestDecoderDropsReservedOptions(t *testing.T) {
	raw := mustEncode(t, 0x81, []byte("reserved"))
	dec := NewDecoder(DefaultLimits())
	events, err := dec.Feed(raw)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(events) != 1 || events[0].Drop != DropReservedOptions {
		t.Fatalf("expected reserved-options drop, got %+v", events)
	}
}
