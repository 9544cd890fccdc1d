package vdom

import (
	"math"
	"testing"
)

func TestPropsEqual(t *testing.T) {
	onClick := func() {}
	onHover := func() {}
	type point struct {
		X, Y float64
	}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nan", math.NaN(), math.NaN(), true},
		{"nan vs number", math.NaN(), 1.0, false},
		{"float32 nan", float32(math.NaN()), float32(math.NaN()), true},
		{"nan in slice", []any{1, math.NaN()}, []any{1, math.NaN()}, true},
		{"nan in map", map[string]any{"w": math.NaN()}, map[string]any{"w": math.NaN()}, true},
		{"nan in struct", point{X: math.NaN()}, point{X: math.NaN()}, true},
		{"same func", onClick, onClick, true},
		{"different funcs", onClick, onHover, false},
		{"nil func", (func())(nil), onClick, false},
		{"func in slice", []any{onClick}, []any{onClick}, true},
		{"slice length", []any{math.NaN()}, []any{math.NaN(), 1}, false},
		{"nil vs empty slice", []int(nil), []int{}, false},
		{"type mismatch", []any{1}, []int{1}, false},
		{"int vs float", 1, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := propsEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("propsEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
