package reply

import (
	"errors"
	"testing"

	apperrors "github.com/HexSleeves/toolloop/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		tool     string
		argument string
		text     string
	}{
		{
			name:     "action",
			raw:      "THOUGHT: find price|ACTION|get_product_price|bike",
			kind:     Action,
			tool:     "get_product_price",
			argument: "bike",
		},
		{
			name:     "action with whitespace",
			raw:      "THOUGHT: x | ACTION |  calculate_total  | 200 \n",
			kind:     Action,
			tool:     "calculate_total",
			argument: "200",
		},
		{
			name:     "extra fields ignored",
			raw:      "THOUGHT: x|ACTION|calculate_total|200|300",
			kind:     Action,
			tool:     "calculate_total",
			argument: "200",
		},
		{
			name:     "action wins over answer",
			raw:      "THOUGHT: ANSWER soon|ACTION|get_product_price|tv",
			kind:     Action,
			tool:     "get_product_price",
			argument: "tv",
		},
		{
			name: "answer with pipe",
			raw:  "ANSWER|The price of the bike including VAT is 120",
			kind: Answer,
			text: "The price of the bike including VAT is 120",
		},
		{
			name: "answer with colon",
			raw:  "ANSWER: 360",
			kind: Answer,
			text: "360",
		},
		{
			name: "answer after preamble",
			raw:  "THOUGHT: done\nANSWER | 240  ",
			kind: Answer,
			text: "240",
		},
		{
			name: "plain prose",
			raw:  "I am not sure what to do.",
			kind: Unrecognized,
		},
		{
			name: "lowercase markers are not markers",
			raw:  "answer|42",
			kind: Unrecognized,
		},
		{
			name: "empty",
			raw:  "",
			kind: Unrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Tool != tt.tool {
				t.Errorf("Tool = %q, want %q", got.Tool, tt.tool)
			}
			if got.Argument != tt.argument {
				t.Errorf("Argument = %q, want %q", got.Argument, tt.argument)
			}
			if got.Text != tt.text {
				t.Errorf("Text = %q, want %q", got.Text, tt.text)
			}
			if got.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", got.Raw, tt.raw)
			}
		})
	}
}

func TestParseMalformedAction(t *testing.T) {
	tests := []string{
		"ACTION",
		"THOUGHT: x|ACTION",
		"THOUGHT: x|ACTION|get_product_price",
		"ACTION get_product_price bike ANSWER|100",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			got, err := Parse(raw)
			var pe *apperrors.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Raw != raw {
				t.Errorf("ParseError.Raw = %q", pe.Raw)
			}
			if got.Kind != Unrecognized {
				t.Errorf("Kind = %v, want Unrecognized", got.Kind)
			}
		})
	}
}

func TestParseDeterministic(t *testing.T) {
	raw := "THOUGHT: x|ACTION|calculate_total|100"
	a, _ := Parse(raw)
	b, _ := Parse(raw)
	if a != b {
		t.Errorf("Parse not deterministic: %+v vs %+v", a, b)
	}
}

func TestObservation(t *testing.T) {
	if got := Observation("240"); got != "OBSERVATION: 240" {
		t.Errorf("Observation() = %q", got)
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{Action: "action", Answer: "answer", Unrecognized: "unrecognized"} {
		if k.String() != want {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}
