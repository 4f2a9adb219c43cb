// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package calculator provides an arithmetic capability backed by govaluate.
package calculator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/jllopis/sabia/pkg/core"
)

const Name = "calculator"

var constants = map[string]interface{}{
	"pi":    math.Pi,
	"e":     math.E,
	"phi":   math.Phi,
	"sqrt2": math.Sqrt2,
	"ln2":   math.Ln2,
	"ln10":  math.Ln10,
}

func unary(name string, fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%s expects a number", name)
		}
		return fn(x), nil
	}
}

func binary(name string, fn func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments, got %d", name, len(args))
		}
		x, ok1 := args[0].(float64)
		y, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%s expects numbers", name)
		}
		return fn(x, y), nil
	}
}

var functions = map[string]govaluate.ExpressionFunction{
	"sqrt":  unary("sqrt", math.Sqrt),
	"abs":   unary("abs", math.Abs),
	"floor": unary("floor", math.Floor),
	"ceil":  unary("ceil", math.Ceil),
	"round": unary("round", math.Round),
	"ln":    unary("ln", math.Log),
	"log":   unary("log", math.Log10),
	"exp":   unary("exp", math.Exp),
	"sin":   unary("sin", math.Sin),
	"cos":   unary("cos", math.Cos),
	"tan":   unary("tan", math.Tan),
	"pow":   binary("pow", math.Pow),
	"min":   binary("min", math.Min),
	"max":   binary("max", math.Max),
}

// Capability evaluates arithmetic expressions such as "2 * (3 + 4)".
type Capability struct{}

// New creates the calculator.
func New() *Capability { return &Capability{} }

func (c *Capability) Name() string { return Name }

func (c *Capability) Description() string {
	return "Evaluates an arithmetic expression, e.g. '2 * (3 + 4)' or 'sqrt(16) + pow(2, 10)'. Input is the expression."
}

// Invoke evaluates input and formats the numeric result.
func (c *Capability) Invoke(ctx context.Context, input string) (string, error) {
	expr := strings.TrimSpace(input)
	if expr == "" {
		return "", fmt.Errorf("empty expression")
	}
	exp, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return "", fmt.Errorf("parse expression: %w", err)
	}
	result, err := exp.Evaluate(constants)
	if err != nil {
		return "", fmt.Errorf("evaluate expression: %w", err)
	}

	switch v := result.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", fmt.Errorf("result is not a finite number")
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

var _ core.Capability = (*Capability)(nil)
