package core

import (
	"testing"
	"time"
)

func TestEnvParsing(t *testing.T) {
	env := MapEnv(map[string]string{
		"NAME":    "  t2i ",
		"COUNT":   "12",
		"BAD_INT": "twelve",
		"FLAG_ON": "On",
		"FLAG_NO": "no",
		"FLAG_X":  "maybe",
		"WAIT":    "90",
	})

	if got := env.String("NAME", "x"); got != "t2i" {
		t.Errorf("String(NAME) = %q", got)
	}
	if got := env.String("MISSING", "x"); got != "x" {
		t.Errorf("String(MISSING) = %q", got)
	}
	if got := env.Int("COUNT", 1); got != 12 {
		t.Errorf("Int(COUNT) = %d", got)
	}
	if got := env.Int("BAD_INT", 1); got != 1 {
		t.Errorf("Int(BAD_INT) = %d, want default", got)
	}

	boolTests := []struct {
		key  string
		def  bool
		want bool
	}{
		{"FLAG_ON", false, true},
		{"FLAG_NO", true, false},
		{"FLAG_X", true, true},
		{"MISSING", false, false},
	}
	for _, tt := range boolTests {
		if got := env.Bool(tt.key, tt.def); got != tt.want {
			t.Errorf("Bool(%s, %v) = %v, want %v", tt.key, tt.def, got, tt.want)
		}
	}

	if got := env.Seconds("WAIT", 1); got != 90*time.Second {
		t.Errorf("Seconds(WAIT) = %v", got)
	}
}
