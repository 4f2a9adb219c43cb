// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package calculator

import (
	"context"
	"testing"
)

func TestInvoke(t *testing.T) {
	tests := []struct {
		expr    string
		want    string
		wantErr bool
	}{
		{"2 + 2", "4", false},
		{"2 * (3 + 4)", "14", false},
		{"sqrt(16) + pow(2, 10)", "1028", false},
		{"10 / 4", "2.5", false},
		{"round(pi * 100)", "314", false},
		{"3 > 2", "true", false},
		{"1 / 0", "", true},
		{"2 +", "", true},
		{"unknown(1)", "", true},
		{"   ", "", true},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := c.Invoke(context.Background(), tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Invoke(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Invoke(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}
