package stream

import "testing"

func TestParseFramedRecords(t *testing.T) {
	raw := `data: {"type":"metadata","size":11,"mime":"text/plain","binary":false}

data: {"type":"chunk","data":"hello "}

data: {"type":"chunk","data":"world"}

data: {"type":"complete","bytes":11}`

	events := Parse(raw)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Type != EventMetadata || events[0].Size != 11 {
		t.Errorf("unexpected metadata event: %+v", events[0])
	}
	if events[3].Type != EventComplete || events[3].Bytes != 11 {
		t.Errorf("unexpected complete event: %+v", events[3])
	}
}

func TestParseDropsGarbledFrames(t *testing.T) {
	raw := "data: {\"type\":\"stdout\",\"data\":\"ok\"}\n\nnot json at all\n\n{\"no_type\":true}\n\ndata: {\"type\":\"stderr\",\"data\":\"err\"}"
	events := Parse(raw)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != EventStdout || events[1].Type != EventStderr {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if got := Parse(""); len(got) != 0 {
		t.Fatalf("expected no events, got %+v", got)
	}
	if got := Parse("\n\n\n\n"); len(got) != 0 {
		t.Fatalf("expected no events for blank frames, got %+v", got)
	}
}

func TestFileContentConcatenatesChunksInOrder(t *testing.T) {
	raw := `{"type":"metadata","size":6}

{"type":"chunk","data":"ab"}

{"type":"chunk","data":"cd"}

{"type":"chunk","data":"ef"}

{"type":"complete","bytes":6}`
	if got := FileContent(raw); got != "abcdef" {
		t.Fatalf("expected abcdef, got %q", got)
	}
}

func TestCommandOutputInterleavesStreams(t *testing.T) {
	raw := `{"type":"stdout","data":"a"}

{"type":"stderr","data":"b"}

{"type":"stdout","data":"c"}`
	if got := CommandOutput(raw); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
