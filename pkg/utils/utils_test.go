package utils

import (
	"testing"
	"time"
)

func TestCoalesceString(t *testing.T) {
	if got := CoalesceString("", "a", "b"); got != "a" {
		t.Errorf("CoalesceString: got %q", got)
	}
	if got := CoalesceString(); got != "" {
		t.Errorf("CoalesceString empty: got %q", got)
	}
}

func TestDefaultInt(t *testing.T) {
	if got := DefaultInt(0, 7); got != 7 {
		t.Errorf("DefaultInt(0, 7): got %d", got)
	}
	if got := DefaultInt(3, 7); got != 3 {
		t.Errorf("DefaultInt(3, 7): got %d", got)
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("15s", time.Minute); got != 15*time.Second {
		t.Errorf("ParseDuration(15s): got %v", got)
	}
	if got := ParseDuration("", time.Minute); got != time.Minute {
		t.Errorf("ParseDuration empty: got %v", got)
	}
	if got := ParseDuration("bogus", time.Minute); got != time.Minute {
		t.Errorf("ParseDuration invalid: got %v", got)
	}
}
