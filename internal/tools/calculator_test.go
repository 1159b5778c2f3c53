package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Evaluate(t *testing.T) {
	calc, err := NewCalculatorTool()
	require.NoError(t, err)

	tests := []struct {
		expr string
		want string
	}{
		{"2 + 2", "4"},
		{"(3 + 4) * 2", "14"},
		{"10 % 3", "1"},
		{"(15 / 100) * 80", "12"},
		{"(27 + 31 + 42.5) / 3", "33.5"},
		{"-3 + 5", "2"},
		{"sqrt(16) + pow(2, 3)", "12"},
		{"0.1 + 0.2", "0.3"},
		{"7 / 2", "3.5"},
		{"18 + 17", "35"},
		{"(18 + 17) / 2", "17.5"},
		{"17.5 + 10", "27.5"},
		{"6 * 7", "42"},
		{"2 + 3 * 4 % 5", "4"},
		{"10 % 4 * 2", "4"},
		{"-2 * -3", "6"},
		{"2 * (3 + 4) - 1", "13"},
		{"10 - 4 - 3", "3"},
		{"-7.5 % 2", "-1.5"},
		{"pow(2, 1 + 2) % 5", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res, err := calc.Execute(context.Background(), Args{"expr": tt.expr})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
			assert.True(t, res.Numeric)
			assert.Equal(t, Calculator, res.Tool)
		})
	}
}

func TestCalculator_RejectsNonArithmetic(t *testing.T) {
	calc, err := NewCalculatorTool()
	require.NoError(t, err)

	for _, expr := range []string{
		"import os",
		"2 ^ 3",
		"x + 1",
		"__import__('os')",
		"sqrt",
		"2 +",
		"2 ** 3",
		"(1 + 2",
		"sqrt(4",
		"1 2",
		"sqrt(1, 2)",
		"",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := calc.Execute(context.Background(), Args{"expr": expr})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestCalculator_ArithmeticFaults(t *testing.T) {
	calc, err := NewCalculatorTool()
	require.NoError(t, err)

	for _, expr := range []string{"1 / 0", "5 % 0", "sqrt(0 - 1)"} {
		_, err := calc.Evaluate(expr)
		assert.ErrorIs(t, err, ErrToolExecution, expr)
	}
}

func TestRewriteExpression(t *testing.T) {
	tests := map[string]string{
		"2 + 2":         "(2.0 + 2.0)",
		"10 % 3":        "fmod(10.0, 3.0)",
		"1 + 10 % 3":    "(1.0 + fmod(10.0, 3.0))",
		"(1 + 10) % 3":  "fmod(((1.0 + 10.0)), 3.0)",
		"-sqrt(4) * 2":  "((-sqrt(4.0)) * 2.0)",
		"pow(2, 3) / 4": "(pow(2.0, 3.0) / 4.0)",
	}
	for expr, want := range tests {
		got, err := rewriteExpression(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}
}

func TestCalculator_MissingArgument(t *testing.T) {
	calc, err := NewCalculatorTool()
	require.NoError(t, err)

	_, err = calc.Execute(context.Background(), Args{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = calc.Execute(context.Background(), Args{"expr": "1", "extra": "2"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "4", FormatNumber(4))
	assert.Equal(t, "30.375", FormatNumber(30.375))
	assert.Equal(t, "27.5", FormatNumber(27.5))
	assert.Equal(t, "0", FormatNumber(-0.0000000000001))
	assert.Equal(t, "-2.25", FormatNumber(-2.25))
}
