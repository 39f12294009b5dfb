package validation

import (
	"testing"
)

type samplePayload struct {
	Name        string    `json:"name" validate:"required,max=10"`
	Status      string    `json:"status" validate:"omitempty,oneof=caught free claimed"`
	Coordinates []float64 `json:"coordinates" validate:"required,len=2"`
	Range       *float64  `json:"perception_range" validate:"omitempty,gt=0"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	r := 30.0
	p := samplePayload{Name: "cam", Status: "free", Coordinates: []float64{120.98, 14.59}, Range: &r}
	if err := ValidateStruct(&p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name      string
		payload   samplePayload
		wantField string
	}{
		{"missing name", samplePayload{Coordinates: []float64{1, 2}}, "name"},
		{"bad status", samplePayload{Name: "x", Status: "lost", Coordinates: []float64{1, 2}}, "status"},
		{"three coordinates", samplePayload{Name: "x", Coordinates: []float64{1, 2, 3}}, "coordinates"},
		{"negative range", samplePayload{Name: "x", Coordinates: []float64{1, 2}, Range: &neg}, "perception_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.payload)
			if err == nil {
				t.Fatal("expected validation error")
			}
			msgs := err.FieldMessages()
			if _, ok := msgs[tt.wantField]; !ok {
				t.Errorf("expected field %q in %v", tt.wantField, msgs)
			}
		})
	}
}

func TestRequestValidationError_Add(t *testing.T) {
	err := NewFieldError("snapshot", "bad").Add("coordinates", "missing").Add("snapshot", "worse")
	if got := err.FieldNames(); len(got) != 2 || got[0] != "coordinates" || got[1] != "snapshot" {
		t.Errorf("FieldNames() = %v", got)
	}
	if got := err.FieldMessages()["snapshot"]; len(got) != 2 {
		t.Errorf("snapshot messages = %v", got)
	}
	if err.Error() != "bad; missing; worse" {
		t.Errorf("Error() = %q", err.Error())
	}
}
