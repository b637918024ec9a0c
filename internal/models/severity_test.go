package models

import "testing"

func TestSeverityLabelThresholds(t *testing.T) {
	cases := map[float64]string{
		0.95: SeverityCritical,
		0.9:  SeverityHigh,
		0.65: SeverityHigh,
		0.6:  SeverityModerate,
		0.35: SeverityModerate,
		0.3:  SeverityNormal,
		0.1:  SeverityNormal,
		0:    SeverityNormal,
	}
	for score, want := range cases {
		if got := SeverityLabel(score); got != want {
			t.Fatalf("SeverityLabel(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestBadgeTone(t *testing.T) {
	if BadgeTone(0.95) != ToneCritical || BadgeTone(0.7) != ToneWarning || BadgeTone(0.2) != ToneOK {
		t.Fatalf("unexpected badge tones")
	}
}

func TestUnitRisk(t *testing.T) {
	if got := UnitRisk(75); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
	if got := UnitRisk(0.4); got != 0.4 {
		t.Fatalf("expected passthrough, got %v", got)
	}
	if got := UnitRisk(250); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
	if got := UnitRisk(-3); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestControlRequestBodyMergesExtra(t *testing.T) {
	req := ControlRequest{Target: "cluster", Action: "scale_up", Extra: map[string]any{"dry_run": true, "replicas": 3}}
	body := req.Body()
	if body["dry_run"] != true {
		t.Fatalf("expected extra payload to override dry_run, got %v", body["dry_run"])
	}
	if body["target"] != "cluster" || body["action"] != "scale_up" || body["replicas"] != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}
