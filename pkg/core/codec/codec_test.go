package codec

import (
	"errors"
	"testing"

	"github.com/fluently/lingua/pkg/core/types"
)

func TestDecode_Direct(t *testing.T) {
	raw := `{"correction":{"hasMistake":false},"response":{"targetText":"Bonjour","english":"Hello","chinese":"你好"}}`

	st, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st.Response.TargetText != "Bonjour" {
		t.Errorf("TargetText = %q, want %q", st.Response.TargetText, "Bonjour")
	}
	if st.Correction.HasMistake {
		t.Error("HasMistake = true, want false")
	}
}

func TestDecode_FencedWithProse(t *testing.T) {
	raw := "Sure! ```json\n{\"correction\":{\"hasMistake\":false},\"response\":{\"targetText\":\"Bonjour\",\"english\":\"Hello\",\"chinese\":\"你好\"}}\n```"

	st, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st.Response.TargetText != "Bonjour" {
		t.Errorf("TargetText = %q, want %q", st.Response.TargetText, "Bonjour")
	}
}

func TestDecode_ProseWrapped(t *testing.T) {
	raw := `Here is my answer: {"correction":{"hasMistake":true,"correctedText":"Je suis allé","explanation":"aller takes être"},"response":{"targetText":"Bien!","english":"Good!","chinese":"好！"}} Hope that helps.`

	st, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !st.Correction.HasMistake {
		t.Error("HasMistake = false, want true")
	}
	if st.Correction.CorrectedText != "Je suis allé" {
		t.Errorf("CorrectedText = %q", st.Correction.CorrectedText)
	}
}

func TestDecode_NoStructure(t *testing.T) {
	for _, raw := range []string{"no json here", "", "   ", "``` ```", "just a } stray { reversed"} {
		_, err := Decode(raw)
		if !errors.Is(err, ErrNoStructureFound) {
			t.Errorf("Decode(%q) err = %v, want ErrNoStructureFound", raw, err)
		}
	}
}

func TestDecode_MalformedInsideBraces(t *testing.T) {
	_, err := Decode("prefix {not: valid json} suffix")
	if !errors.Is(err, ErrNoStructureFound) {
		t.Errorf("err = %v, want ErrNoStructureFound", err)
	}
}

func TestDecode_AbsentOptionalFields(t *testing.T) {
	st, err := Decode(`{"correction":{"hasMistake":false},"response":{"targetText":"Hallo"}}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st.Correction.CorrectedText != "" || st.Correction.Explanation != "" {
		t.Error("absent optional fields should default to empty")
	}
	if st.Response.English != "" || st.Response.Chinese != "" {
		t.Error("absent renderings should default to empty")
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		wrap func(string) string
	}{
		{"bare", func(s string) string { return s }},
		{"fenced", func(s string) string { return "```json\n" + s + "\n```" }},
		{"prose wrapped", func(s string) string { return "Of course! " + s + "\nLet me know." }},
		{"fenced with prose", func(s string) string { return "Sure! ```json\n" + s + "\n```" }},
	}

	original := &types.StructuredTurn{
		Correction: types.Correction{HasMistake: true, CorrectedText: "Je suis allé au magasin", Explanation: "movement verbs take être"},
		Response:   types.Reply{TargetText: "Qu'est-ce que tu as acheté ?", English: "What did you buy?", Chinese: "你买了什么？"},
	}

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	for _, tt := range tests {
		decoded, err := Decode(tt.wrap(encoded))
		if err != nil {
			t.Errorf("%s: Decode: %v", tt.name, err)
			continue
		}
		if *decoded != *original {
			t.Errorf("%s: round trip = %+v, want %+v", tt.name, decoded, original)
		}
	}
}
