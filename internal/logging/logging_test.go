package logging

import (
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
	}{
		{name: "debug", input: "debug", expected: LevelDebug},
		{name: "info", input: "info", expected: LevelInfo},
		{name: "warn", input: "warn", expected: LevelWarn},
		{name: "warning alias", input: "warning", expected: LevelWarn},
		{name: "error", input: "error", expected: LevelError},
		{name: "case insensitive", input: "DEBUG", expected: LevelDebug},
		{name: "surrounding space", input: "  error ", expected: LevelError},
		{name: "unknown defaults to info", input: "verbose", expected: LevelInfo},
		{name: "empty defaults to info", input: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Run("DEBUG wins over LOG_LEVEL", func(t *testing.T) {
		t.Setenv("DEBUG", "true")
		t.Setenv("LOG_LEVEL", "error")
		if got := levelFromEnv(); got != LevelDebug {
			t.Errorf("levelFromEnv() = %v, want debug", got)
		}
	})

	t.Run("falsy DEBUG falls through", func(t *testing.T) {
		t.Setenv("DEBUG", "no")
		t.Setenv("LOG_LEVEL", "warn")
		if got := levelFromEnv(); got != LevelWarn {
			t.Errorf("levelFromEnv() = %v, want warn", got)
		}
	})
}

func TestSetLevel(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	for _, level := range []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		SetLevel(level)
		if got := GetLevel(); got != level {
			t.Errorf("after SetLevel(%v), GetLevel() = %v", level, got)
		}
	}

	SetLevel(LevelDebug)
	if !IsDebugEnabled() {
		t.Error("IsDebugEnabled() should be true at debug level")
	}
	SetLevel(LevelInfo)
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled() should be false at info level")
	}
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

// TestLoggingFunctions tests that logging functions don't panic
func TestLoggingFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{name: "Debug", fn: func() { Debug("test %s %d", "message", 123) }},
		{name: "Info", fn: func() { Info("test message") }},
		{name: "Warn", fn: func() { Warn("test message") }},
		{name: "Error", fn: func() { Error("test message") }},
		{name: "Printf", fn: func() { Printf("test %s", "message") }},
		{name: "Println", fn: func() { Println("test", "message", 123) }},
		{name: "Named", fn: func() { Named("test").Infow("structured", "key", "value") }},
		{name: "Sync", fn: Sync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Function panicked: %v", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
