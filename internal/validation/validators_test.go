package validation

import (
	"strings"
	"testing"
)

func TestValidateTaskPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		wantErr bool
	}{
		{"low", false},
		{"medium", false},
		{"high", false},
		{"urgent", false},
		{"critical", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			err := ValidateTaskPriority(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !strings.Contains(err.Error(), "low, medium, high, urgent") {
				t.Errorf("Expected legal values in message, got %q", err.Error())
			}
		})
	}
}

func TestValidateTaskStatus(t *testing.T) {
	t.Parallel()

	if err := ValidateTaskStatus("in_progress"); err != nil {
		t.Errorf("Expected in_progress to be valid, got %v", err)
	}
	err := ValidateTaskStatus("completed")
	if err == nil {
		t.Fatal("Expected error for completed")
	}
	if !strings.Contains(err.Error(), "todo, in_progress, done, cancelled") {
		t.Errorf("Expected legal values in message, got %q", err.Error())
	}
}

func TestValidateTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"trimmed", "  write report  ", "write report", false},
		{"control chars removed", "a\x00b", "ab", false},
		{"empty", "   ", "", true},
		{"max length", strings.Repeat("x", 200), strings.Repeat("x", 200), false},
		{"too long", strings.Repeat("x", 201), "", true},
		{"multibyte counts characters", strings.Repeat("任", 200), strings.Repeat("任", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateTitle(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	t.Parallel()

	if _, err := ValidateDescription(strings.Repeat("d", 2000)); err != nil {
		t.Errorf("Expected 2000 characters to be accepted, got %v", err)
	}
	if _, err := ValidateDescription(strings.Repeat("d", 2001)); err == nil {
		t.Error("Expected 2001 characters to be rejected")
	}
}

func TestStructTags(t *testing.T) {
	t.Parallel()

	type input struct {
		Username string `validate:"required,min=3,max=50,username"`
		Priority string `validate:"omitempty,task_priority"`
		Status   string `validate:"omitempty,task_status"`
	}

	tests := []struct {
		name    string
		in      input
		wantErr string
	}{
		{"valid", input{Username: "alice.b", Priority: "high", Status: "done"}, ""},
		{"empty enums allowed", input{Username: "alice"}, ""},
		{"bad username", input{Username: "al ice"}, "username may only contain"},
		{"bad priority", input{Username: "alice", Priority: "critical"}, "priority must be one of"},
		{"bad status", input{Username: "alice", Status: "finished"}, "status must be one of"},
		{"short username", input{Username: "al"}, "at least 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if msg := FormatError(err); !strings.Contains(msg, tt.wantErr) {
				t.Errorf("Expected %q in %q", tt.wantErr, msg)
			}
		})
	}
}
