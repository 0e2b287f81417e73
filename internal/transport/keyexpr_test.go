package transport

import (
	"errors"
	"testing"
)

func TestIntersects(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"robot/command", "robot/command", true},
		{"robot/command", "robot/telemetry", false},
		{"robot/*", "robot/command", true},
		{"robot/*", "robot/arm/command", false},
		{"robot/**", "robot/arm/command", true},
		{"robot/**", "robot", true},
		{"**", "anything/at/all", true},
		{"*/command", "robot/*", true},
		{"a/**/z", "a/b/c/z", true},
		{"a/**/z", "a/b/c/y", false},
		{"a/**", "**/z", true},
		{"robot", "robot/command", false},
	}
	for _, tt := range tests {
		if got := Intersects(tt.a, tt.b); got != tt.want {
			t.Fatalf("Intersects(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := Intersects(tt.b, tt.a); got != tt.want {
			t.Fatalf("Intersects(%q, %q) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestValidateKeyExpr(t *testing.T) {
	for _, ok := range []string{"robot/command", "robot/*", "**", "a/**/b"} {
		if err := ValidateKeyExpr(ok); err != nil {
			t.Fatalf("ValidateKeyExpr(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "/robot", "robot/", "robot//command", "rob*t", "robot/cmd?x=1"} {
		if err := ValidateKeyExpr(bad); !errors.Is(err, ErrInvalidKeyExpr) {
			t.Fatalf("ValidateKeyExpr(%q) = %v, want ErrInvalidKeyExpr", bad, err)
		}
	}
}
