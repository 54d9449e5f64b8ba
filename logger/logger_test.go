package logger

import "testing"

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("default level = %q, want info", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("default format = %q, want console", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamps enabled by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json format", Config{Format: "json"}, false},
		{"bad level", Config{Level: "shout"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("recording_id", "abc", "progress", 42)
	if m["recording_id"] != "abc" {
		t.Errorf("recording_id = %v", m["recording_id"])
	}
	if m["progress"] != 42 {
		t.Errorf("progress = %v", m["progress"])
	}

	// odd trailing value is dropped
	m = Fields("only-key")
	if len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestWithComponent(t *testing.T) {
	l := NewDefault("test").WithComponent("queue")
	if l == nil {
		t.Fatal("expected logger")
	}
	// must not panic
	l.Info("hello", Fields("k", "v"))
	l.WithError(nil)
}
