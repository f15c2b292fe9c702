package daemon

import (
	"encoding/json"
	"testing"

	"github.com/jwulff/incision/internal/pipeline"
)

func TestCommandMarshalScore(t *testing.T) {
	cmd := Command{
		Cmd:    CmdScore,
		Lyrics: "hello world",
		Audio:  "data:audio/wav;base64,AAAA",
		Words:  []pipeline.AlignedWord{{Word: "hello", StartTime: 0.1, EndTime: 0.5}},
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	words, ok := raw["words"].([]any)
	if !ok || len(words) != 1 {
		t.Fatalf("words = %v, want one entry", raw["words"])
	}
	w := words[0].(map[string]any)
	if w["word"] != "hello" || w["startTime"] != 0.1 || w["endTime"] != 0.5 {
		t.Errorf("word = %v", w)
	}
}

func TestCommandOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Command{Cmd: CmdStatus})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	for _, k := range []string{"lyrics", "audio", "words"} {
		if _, ok := raw[k]; ok {
			t.Errorf("status command should omit %s", k)
		}
	}
}

func TestResponseScored(t *testing.T) {
	j := `{"ok":true,"words":[{"word":"fire","startTime":1.2,"endTime":1.6,"confidenceScore":55.5,"needsRepair":true,"sectionName":"Chorus"}]}`

	var resp Response
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	scored := scoredFrom(resp.Words)
	if len(scored) != 1 {
		t.Fatalf("got %d words, want 1", len(scored))
	}
	s := scored[0]
	if s.Word != "fire" || s.StartTime != 1.2 || s.EndTime != 1.6 {
		t.Errorf("aligned = %+v", s.AlignedWord)
	}
	if s.ConfidenceScore != 55.5 || !s.NeedsRepair || s.SectionName != "Chorus" {
		t.Errorf("scored = %+v", s)
	}
}

func TestResponseError(t *testing.T) {
	j := `{"ok":false,"error":"audio too short"}`

	var resp Response
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.OK {
		t.Error("ok = true, want false")
	}
	if resp.Error != "audio too short" {
		t.Errorf("error = %q, want %q", resp.Error, "audio too short")
	}
}

func TestEventProgress(t *testing.T) {
	j := `{"event":"progress","stage":"score","progress":0.25}`

	var ev Event
	if err := json.Unmarshal([]byte(j), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if ev.Stage != "score" {
		t.Errorf("stage = %q, want %q", ev.Stage, "score")
	}
	if ev.Progress == nil || *ev.Progress != 0.25 {
		t.Errorf("progress = %v, want 0.25", ev.Progress)
	}
}

func TestAlignedFromDropsScores(t *testing.T) {
	got := alignedFrom([]Word{{Word: "a", StartTime: 1, EndTime: 2, ConfidenceScore: Float64Ptr(80)}})
	want := pipeline.AlignedWord{Word: "a", StartTime: 1, EndTime: 2}
	if got[0] != want {
		t.Errorf("aligned = %+v, want %+v", got[0], want)
	}
}

func TestFloat64Ptr(t *testing.T) {
	p := Float64Ptr(3.5)
	if p == nil || *p != 3.5 {
		t.Error("Float64Ptr(3.5) should return pointer to 3.5")
	}
}
