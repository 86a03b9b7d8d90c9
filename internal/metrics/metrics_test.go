package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRecordPrediction(t *testing.T) {
	m := New()
	m.RecordPrediction(KindImage, OutcomeSuccess)
	m.RecordPrediction(KindImage, OutcomeSuccess)
	m.RecordPrediction(KindVideo, OutcomeError)

	body := scrape(t, m)
	if !strings.Contains(body, `predictions_total{kind="image",outcome="success"} 2`) {
		t.Errorf("missing image success counter in:\n%s", body)
	}
	if !strings.Contains(body, `predictions_total{kind="video",outcome="error"} 1`) {
		t.Errorf("missing video error counter in:\n%s", body)
	}
}

func TestRecordDetections(t *testing.T) {
	m := New()
	m.RecordDetections(map[string]int{
		"poubelle_pleine": 3,
		"poubelle_vide":   1,
	})
	m.RecordDetections(map[string]int{"poubelle_vide": 2})

	body := scrape(t, m)
	if !strings.Contains(body, `detections_total{class_name="poubelle_pleine"} 3`) {
		t.Errorf("missing poubelle_pleine counter in:\n%s", body)
	}
	if !strings.Contains(body, `detections_total{class_name="poubelle_vide"} 3`) {
		t.Errorf("missing poubelle_vide counter in:\n%s", body)
	}
}

func TestObserveInference(t *testing.T) {
	m := New()
	m.ObserveInference(125 * time.Millisecond)
	m.ObserveInference(250 * time.Millisecond)

	body := scrape(t, m)
	if !strings.Contains(body, "inference_duration_seconds_count 2") {
		t.Errorf("missing histogram count in:\n%s", body)
	}
	if !strings.Contains(body, "inference_duration_seconds_sum 0.375") {
		t.Errorf("missing histogram sum in:\n%s", body)
	}
}

func TestAddFramesProcessed(t *testing.T) {
	m := New()
	m.AddFramesProcessed(10)
	m.AddFramesProcessed(5)

	body := scrape(t, m)
	if !strings.Contains(body, "frames_processed_total 15") {
		t.Errorf("missing frames counter in:\n%s", body)
	}
}

func TestPrivateRegistry(t *testing.T) {
	m := New()
	m.RecordPrediction(KindImage, OutcomeSuccess)

	body := scrape(t, m)
	if strings.Contains(body, "go_goroutines") {
		t.Error("registry should not expose Go runtime collectors")
	}
}
