package orchestrator

import "testing"

func TestRuntimeLoadSampler_ReturnsNonNegativeSample(t *testing.T) {
	s := NewRuntimeLoadSampler()
	sample := s.Sample()
	if sample.LoadPerCPU < 0 {
		t.Fatalf("expected non-negative load, got %v", sample.LoadPerCPU)
	}
	if sample.FreeHeapBytes < 0 {
		t.Fatalf("expected non-negative free heap, got %v", sample.FreeHeapBytes)
	}
}
