package query

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// String Functions

// maxStringResult bounds strings built by REPEAT and the padding functions
const maxStringResult = 10 * 1024 * 1024

// stringArg reads argument i as a string, naming it in the error
func stringArg(fn string, args []interface{}, i int, label string) (string, error) {
	s, err := valueToString(args[i])
	if err != nil {
		if label == "" {
			return "", fmt.Errorf("%s: %w", fn, err)
		}
		return "", fmt.Errorf("%s: %s: %w", fn, label, err)
	}
	return s, nil
}

// UpperFunc converts a string to uppercase
type UpperFunc struct{}

func (f *UpperFunc) Name() string  { return "UPPER" }
func (f *UpperFunc) MinArity() int { return 1 }
func (f *UpperFunc) MaxArity() int { return 1 }
func (f *UpperFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("UPPER", args, 0, "")
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(str), nil
}

// LowerFunc converts a string to lowercase
type LowerFunc struct{}

func (f *LowerFunc) Name() string  { return "LOWER" }
func (f *LowerFunc) MinArity() int { return 1 }
func (f *LowerFunc) MaxArity() int { return 1 }
func (f *LowerFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("LOWER", args, 0, "")
	if err != nil {
		return nil, err
	}
	return strings.ToLower(str), nil
}

// ConcatFunc concatenates its arguments, skipping nulls
type ConcatFunc struct{}

func (f *ConcatFunc) Name() string  { return "CONCAT" }
func (f *ConcatFunc) MinArity() int { return 1 }
func (f *ConcatFunc) MaxArity() int { return -1 } // variadic
func (f *ConcatFunc) Evaluate(args []interface{}) (interface{}, error) {
	var builder strings.Builder
	for _, arg := range args {
		if isStrictNull(arg) {
			continue
		}
		builder.WriteString(toString(arg))
	}
	return builder.String(), nil
}

// LengthFunc returns the number of characters in a string, or the number of
// elements in an array
type LengthFunc struct{}

func (f *LengthFunc) Name() string  { return "LENGTH" }
func (f *LengthFunc) MinArity() int { return 1 }
func (f *LengthFunc) MaxArity() int { return 1 }
func (f *LengthFunc) Evaluate(args []interface{}) (interface{}, error) {
	if items, ok := normalizeValue(args[0]).([]interface{}); ok {
		return float64(len(items)), nil
	}
	str, err := stringArg("LENGTH", args, 0, "")
	if err != nil {
		return nil, err
	}
	return float64(utf8.RuneCountInString(str)), nil
}

// TrimFunc trims whitespace, or the given characters, from both ends of a string
type TrimFunc struct{}

func (f *TrimFunc) Name() string  { return "TRIM" }
func (f *TrimFunc) MinArity() int { return 1 }
func (f *TrimFunc) MaxArity() int { return 2 }
func (f *TrimFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, cutset, err := trimArgs("TRIM", args)
	if err != nil {
		return nil, err
	}
	return strings.Trim(str, cutset), nil
}

// LTrimFunc trims whitespace, or the given characters, from the left side of a string
type LTrimFunc struct{}

func (f *LTrimFunc) Name() string  { return "LTRIM" }
func (f *LTrimFunc) MinArity() int { return 1 }
func (f *LTrimFunc) MaxArity() int { return 2 }
func (f *LTrimFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, cutset, err := trimArgs("LTRIM", args)
	if err != nil {
		return nil, err
	}
	return strings.TrimLeft(str, cutset), nil
}

// RTrimFunc trims whitespace, or the given characters, from the right side of a string
type RTrimFunc struct{}

func (f *RTrimFunc) Name() string  { return "RTRIM" }
func (f *RTrimFunc) MinArity() int { return 1 }
func (f *RTrimFunc) MaxArity() int { return 2 }
func (f *RTrimFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, cutset, err := trimArgs("RTRIM", args)
	if err != nil {
		return nil, err
	}
	return strings.TrimRight(str, cutset), nil
}

func trimArgs(fn string, args []interface{}) (string, string, error) {
	str, err := stringArg(fn, args, 0, "")
	if err != nil {
		return "", "", err
	}
	cutset := " \t\n\r"
	if len(args) == 2 {
		if cutset, err = stringArg(fn, args, 1, "characters"); err != nil {
			return "", "", err
		}
	}
	return str, cutset, nil
}

// SubstringFunc extracts a substring (1-indexed, SQL style)
type SubstringFunc struct{}

func (f *SubstringFunc) Name() string  { return "SUBSTRING" }
func (f *SubstringFunc) MinArity() int { return 2 }
func (f *SubstringFunc) MaxArity() int { return 3 }
func (f *SubstringFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("SUBSTRING", args, 0, "")
	if err != nil {
		return nil, err
	}
	start, err := valueToInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("SUBSTRING: start: %w", err)
	}

	// runes keep multibyte characters intact
	runes := []rune(str)
	startIdx := start - 1
	if startIdx < 0 {
		startIdx = 0
	}
	if startIdx >= len(runes) {
		return "", nil
	}
	if len(args) < 3 {
		return string(runes[startIdx:]), nil
	}

	length, err := valueToInt(args[2])
	if err != nil {
		return nil, fmt.Errorf("SUBSTRING: length: %w", err)
	}
	if length < 0 {
		return "", nil
	}
	endIdx := startIdx + length
	if endIdx > len(runes) {
		endIdx = len(runes)
	}
	return string(runes[startIdx:endIdx]), nil
}

// LeftFunc returns the first n characters of a string
type LeftFunc struct{}

func (f *LeftFunc) Name() string  { return "LEFT" }
func (f *LeftFunc) MinArity() int { return 2 }
func (f *LeftFunc) MaxArity() int { return 2 }
func (f *LeftFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("LEFT", args, 0, "")
	if err != nil {
		return nil, err
	}
	n, err := valueToInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("LEFT: length: %w", err)
	}
	runes := []rune(str)
	if n < 0 {
		n = 0
	}
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n]), nil
}

// RightFunc returns the last n characters of a string
type RightFunc struct{}

func (f *RightFunc) Name() string  { return "RIGHT" }
func (f *RightFunc) MinArity() int { return 2 }
func (f *RightFunc) MaxArity() int { return 2 }
func (f *RightFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("RIGHT", args, 0, "")
	if err != nil {
		return nil, err
	}
	n, err := valueToInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("RIGHT: length: %w", err)
	}
	runes := []rune(str)
	if n < 0 {
		n = 0
	}
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[len(runes)-n:]), nil
}

// PadFunc pads a string to a length on one side. LPAD and RPAD share it.
type PadFunc struct {
	name string
	left bool
}

func (f *PadFunc) Name() string  { return f.name }
func (f *PadFunc) MinArity() int { return 2 }
func (f *PadFunc) MaxArity() int { return 3 }
func (f *PadFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg(f.name, args, 0, "")
	if err != nil {
		return nil, err
	}
	length, err := valueToInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("%s: length: %w", f.name, err)
	}
	if length > maxStringResult {
		return nil, fmt.Errorf("%s: result would be too large", f.name)
	}
	pad := " "
	if len(args) == 3 {
		if pad, err = stringArg(f.name, args, 2, "pad"); err != nil {
			return nil, err
		}
	}

	runes := []rune(str)
	if length <= len(runes) {
		return string(runes[:max(length, 0)]), nil
	}
	if pad == "" {
		return str, nil
	}
	fill := []rune(strings.Repeat(pad, length))[:length-len(runes)]
	if f.left {
		return string(fill) + str, nil
	}
	return str + string(fill), nil
}

// ReplaceFunc replaces occurrences of a substring
type ReplaceFunc struct{}

func (f *ReplaceFunc) Name() string  { return "REPLACE" }
func (f *ReplaceFunc) MinArity() int { return 3 }
func (f *ReplaceFunc) MaxArity() int { return 3 }
func (f *ReplaceFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("REPLACE", args, 0, "")
	if err != nil {
		return nil, err
	}
	from, err := stringArg("REPLACE", args, 1, "old")
	if err != nil {
		return nil, err
	}
	to, err := stringArg("REPLACE", args, 2, "new")
	if err != nil {
		return nil, err
	}
	return strings.ReplaceAll(str, from, to), nil
}

// SplitFunc splits a string by a delimiter into an array. With an index it
// returns that element (1-indexed) instead.
type SplitFunc struct{}

func (f *SplitFunc) Name() string  { return "SPLIT" }
func (f *SplitFunc) MinArity() int { return 2 }
func (f *SplitFunc) MaxArity() int { return 3 }
func (f *SplitFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("SPLIT", args, 0, "")
	if err != nil {
		return nil, err
	}
	delim, err := stringArg("SPLIT", args, 1, "delimiter")
	if err != nil {
		return nil, err
	}

	parts := strings.Split(str, delim)
	if len(args) == 3 {
		idx, err := valueToInt(args[2])
		if err != nil {
			return nil, fmt.Errorf("SPLIT: index: %w", err)
		}
		if idx < 1 || idx > len(parts) {
			return nil, nil
		}
		return parts[idx-1], nil
	}

	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

// ReverseFunc reverses a string
type ReverseFunc struct{}

func (f *ReverseFunc) Name() string  { return "REVERSE" }
func (f *ReverseFunc) MinArity() int { return 1 }
func (f *ReverseFunc) MaxArity() int { return 1 }
func (f *ReverseFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("REVERSE", args, 0, "")
	if err != nil {
		return nil, err
	}
	runes := []rune(str)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}

// ContainsFunc checks if a string contains a substring
type ContainsFunc struct{}

func (f *ContainsFunc) Name() string  { return "CONTAINS" }
func (f *ContainsFunc) MinArity() int { return 2 }
func (f *ContainsFunc) MaxArity() int { return 2 }
func (f *ContainsFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("CONTAINS", args, 0, "")
	if err != nil {
		return nil, err
	}
	substr, err := stringArg("CONTAINS", args, 1, "substring")
	if err != nil {
		return nil, err
	}
	return strings.Contains(str, substr), nil
}

// StartsWithFunc checks if a string starts with a prefix
type StartsWithFunc struct{}

func (f *StartsWithFunc) Name() string  { return "STARTS_WITH" }
func (f *StartsWithFunc) MinArity() int { return 2 }
func (f *StartsWithFunc) MaxArity() int { return 2 }
func (f *StartsWithFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("STARTS_WITH", args, 0, "")
	if err != nil {
		return nil, err
	}
	prefix, err := stringArg("STARTS_WITH", args, 1, "prefix")
	if err != nil {
		return nil, err
	}
	return strings.HasPrefix(str, prefix), nil
}

// EndsWithFunc checks if a string ends with a suffix
type EndsWithFunc struct{}

func (f *EndsWithFunc) Name() string  { return "ENDS_WITH" }
func (f *EndsWithFunc) MinArity() int { return 2 }
func (f *EndsWithFunc) MaxArity() int { return 2 }
func (f *EndsWithFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("ENDS_WITH", args, 0, "")
	if err != nil {
		return nil, err
	}
	suffix, err := stringArg("ENDS_WITH", args, 1, "suffix")
	if err != nil {
		return nil, err
	}
	return strings.HasSuffix(str, suffix), nil
}

// RepeatFunc repeats a string n times
type RepeatFunc struct{}

func (f *RepeatFunc) Name() string  { return "REPEAT" }
func (f *RepeatFunc) MinArity() int { return 2 }
func (f *RepeatFunc) MaxArity() int { return 2 }
func (f *RepeatFunc) Evaluate(args []interface{}) (interface{}, error) {
	str, err := stringArg("REPEAT", args, 0, "")
	if err != nil {
		return nil, err
	}
	count, err := valueToInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("REPEAT: count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("REPEAT: count must be non-negative, got %d", count)
	}
	if len(str) > 0 && count > maxStringResult/len(str) {
		return nil, fmt.Errorf("REPEAT: result would be too large")
	}
	return strings.Repeat(str, count), nil
}
