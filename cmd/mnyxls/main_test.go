package main

import (
	"slices"
	"testing"
)

func TestExpandVerbosity(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"-vv", "a.csv"}, []string{"-v", "-v", "a.csv"}},
		{[]string{"-v", "-xls", "out.xlsx"}, []string{"-v", "-xls", "out.xlsx"}},
		{[]string{"--vvv"}, []string{"-v", "-v", "-v"}},
		{[]string{"--", "-vv"}, []string{"--", "-vv"}},
	}
	for _, tt := range tests {
		if got := expandVerbosity(tt.args); !slices.Equal(got, tt.want) {
			t.Errorf("expandVerbosity(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestVerbosityFlag(t *testing.T) {
	var v verbosity
	for range 2 {
		if err := v.Set("true"); err != nil {
			t.Fatal(err)
		}
	}
	if v != 2 {
		t.Errorf("verbosity = %d, want 2", v)
	}
	if err := v.Set("3"); err == nil {
		t.Error("expected error for a non-boolean value")
	}
}
