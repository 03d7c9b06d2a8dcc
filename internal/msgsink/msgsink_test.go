package msgsink

import (
	"errors"
	"testing"
)

func TestLogDispatchesToCallback(t *testing.T) {
	var got []Message
	SetCallback(func(m Message) { got = append(got, m) })
	defer SetCallback(nil)

	SetLevel(LevelDebug)
	Log(LevelInfo, ComponentBoard, nil, "board %s online", "1234-Teensy")

	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].Text != "board 1234-Teensy online" {
		t.Fatalf("unexpected text: %q", got[0].Text)
	}
	if got[0].Component != ComponentBoard {
		t.Fatalf("unexpected component: %q", got[0].Component)
	}
}

func TestLevelThresholdFilters(t *testing.T) {
	var got []Message
	SetCallback(func(m Message) { got = append(got, m) })
	defer SetCallback(nil)

	SetLevel(LevelWarning)
	Log(LevelDebug, ComponentBoard, nil, "should be dropped")
	Log(LevelError, ComponentBoard, nil, "should arrive")

	if len(got) != 1 || got[0].Text != "should arrive" {
		t.Fatalf("expected only the error-level message, got %+v", got)
	}
}

func TestMaskSuppressesLog(t *testing.T) {
	var got []Message
	SetCallback(func(m Message) { got = append(got, m) })
	defer SetCallback(nil)
	SetLevel(LevelDebug)

	sentinel := errors.New("port busy")
	MaskedDuring(sentinel, func() {
		Log(LevelError, ComponentPlatform, sentinel, "probe failed")
	})
	Log(LevelError, ComponentPlatform, sentinel, "probe failed again")

	if len(got) != 1 {
		t.Fatalf("expected masked call to be suppressed, got %d messages", len(got))
	}
}

func TestProgressAndStatus(t *testing.T) {
	var got []Message
	SetCallback(func(m Message) { got = append(got, m) })
	defer SetCallback(nil)

	Progress("flashing", 5, 10)
	Status("upload", "RUNNING")

	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Kind != KindProgress || got[0].Value != 5 || got[0].Max != 10 {
		t.Fatalf("unexpected progress message: %+v", got[0])
	}
	if got[1].Kind != KindStatus || got[1].Status != "RUNNING" {
		t.Fatalf("unexpected status message: %+v", got[1])
	}
}
