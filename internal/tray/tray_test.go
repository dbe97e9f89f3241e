package tray

import (
	"context"
	"testing"

	"github.com/ayusman/wandsign/internal/app"
)

func TestTray_Publish(t *testing.T) {
	tr := New(true)
	ctx := context.Background()

	if got := tr.LastSign(); got != "" {
		t.Fatalf("LastSign() = %q, want empty", got)
	}

	tr.Publish(ctx, app.Event{Recognized: true, Label: 2, Name: "circle"})
	tr.Publish(ctx, app.Event{Recognized: false})
	if got := tr.LastSign(); got != "circle" {
		t.Errorf("LastSign() = %q, want circle", got)
	}

	tr.Publish(ctx, app.Event{Recognized: true, Label: 7})
	if got := tr.LastSign(); got != "#7" {
		t.Errorf("LastSign() = %q, want #7 for an unnamed label", got)
	}

	if tr.recognized != 2 || tr.noMatch != 1 {
		t.Errorf("counts = %d/%d, want 2/1", tr.recognized, tr.noMatch)
	}
}

func TestTray_Toggle(t *testing.T) {
	tr := New(true)

	var calls []bool
	tr.OnToggle(func(enabled bool) { calls = append(calls, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(calls) != 2 || calls[0] != false || calls[1] != true {
		t.Errorf("toggle callbacks = %v, want [false true]", calls)
	}
	if !tr.IsEnabled() {
		t.Error("expected enabled after two toggles")
	}
}

func TestTray_Dashboard(t *testing.T) {
	tr := New(false)
	opened := false
	tr.OnDashboard(func() { opened = true })
	tr.handleDashboard()
	if !opened {
		t.Error("dashboard callback not called")
	}
}

func TestTitles(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{toggleTitle(true), "● Enabled"},
		{toggleTitle(false), "○ Disabled"},
		{lastTitle(""), "Last: none"},
		{lastTitle("zigzag"), "Last: zigzag"},
		{countsTitle(3, 1), "Recognized 3, no match 1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
