package model

import "testing"

func TestOptionsApplyOverDefaults(t *testing.T) {
	o := Options{
		Model:     "gemini-2.5-flash",
		MaxTokens: 2048,
	}
	o.Apply(
		WithModel("gemini-2.5-pro"),
		WithTemperature(0.2),
		WithStop("END"),
	)

	if o.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q, want the per-call override", o.Model)
	}
	if o.Temperature == nil || *o.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", o.Temperature)
	}
	if o.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d, want the untouched default", o.MaxTokens)
	}
	if len(o.Stop) != 1 || o.Stop[0] != "END" {
		t.Errorf("Stop = %v, want [END]", o.Stop)
	}
}

func TestOptionsApplyEmpty(t *testing.T) {
	o := Options{Model: "gemini-2.5-flash", MaxTokens: 1024}
	o.Apply()

	if o.Model != "gemini-2.5-flash" || o.MaxTokens != 1024 {
		t.Errorf("Apply with no options changed the base: %+v", o)
	}
	if o.Temperature != nil {
		t.Errorf("Temperature = %v, want nil", o.Temperature)
	}
}
