package logger

import "testing"

func TestNewParsesLevel(t *testing.T) {
	l, err := New("bet-service", "prod", "warn")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(-1) || !l.Core().Enabled(1) {
		t.Fatal("expected warn level")
	}
	if _, err := New("bet-service", "local", "loud"); err == nil {
		t.Fatal("expected bad level error")
	}
}
