package sheet

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestValidateAnswers(t *testing.T) {
	tests := []struct {
		name   string
		marked [][]bool
		want   []Answer
	}{
		{
			name:   "one mark each",
			marked: [][]bool{{true, false, false}, {false, false, true}},
			want:   []Answer{Chosen(0), Chosen(2)},
		},
		{
			name:   "blank question",
			marked: [][]bool{{false, false, false}, {false, true, false}},
			want:   []Answer{None, Chosen(1)},
		},
		{
			name:   "double mark",
			marked: [][]bool{{true, true, false}, {false, true, false}},
			want:   []Answer{None, Chosen(1)},
		},
		{
			name:   "no questions",
			marked: [][]bool{},
			want:   []Answer{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateAnswers(tt.marked)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnswer_JSON(t *testing.T) {
	answers := []Answer{Chosen(1), None, Chosen(0)}

	data, err := json.Marshal(answers)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[1,null,0]" {
		t.Errorf("got %s, want [1,null,0]", data)
	}

	var back []Answer
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(back, answers) {
		t.Errorf("round trip: got %v, want %v", back, answers)
	}

	var bad Answer
	if err := json.Unmarshal([]byte(`"b"`), &bad); err == nil {
		t.Error("Unmarshal should reject a string")
	}
}

func TestAnswer_String(t *testing.T) {
	if Chosen(3).String() != "3" || None.String() != "none" {
		t.Errorf("got %q and %q", Chosen(3).String(), None.String())
	}
}
