package database

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// vectorToString converts a float32 array to libSQL vector string format.
// Non-finite values are rejected rather than stored.
func vectorToString(dims int, numbers []float32) (string, error) {
	if len(numbers) != dims {
		return "", fmt.Errorf("vector must have exactly %d dimensions, got %d", dims, len(numbers))
	}

	strNumbers := make([]string, len(numbers))
	for i, n := range numbers {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return "", fmt.Errorf("vector element %d is not a finite number", i)
		}
		strNumbers[i] = strconv.FormatFloat(float64(n), 'g', -1, 32)
	}

	return "[" + strings.Join(strNumbers, ", ") + "]", nil
}

// decodeVector turns a scanned embedding column into a vector. NULL yields
// nil. F32_BLOB values arrive as little-endian bytes; text values (from
// vector_extract or foreign writers) are parsed as a JSON array.
func decodeVector(raw any, dims int) ([]float32, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []byte:
		return extractVector(v, dims)
	case string:
		var elems []any
		if err := json.Unmarshal([]byte(v), &elems); err != nil {
			return nil, fmt.Errorf("invalid vector text: %w", err)
		}
		out, ok, err := coerceToFloat32Slice(elems)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("invalid vector text")
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported embedding column type %T", raw)
}

// extractVector extracts vector from binary format (F32_BLOB)
func extractVector(embedding []byte, dims int) ([]float32, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	expectedBytes := dims * 4
	if len(embedding) != expectedBytes {
		return nil, fmt.Errorf("invalid embedding size: expected %d bytes for %d-dimensional vector, got %d", expectedBytes, dims, len(embedding))
	}

	vector := make([]float32, dims)
	for i := 0; i < dims; i++ {
		bits := binary.LittleEndian.Uint32(embedding[i*4 : (i+1)*4])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}

// coerceToFloat32Slice attempts to interpret arbitrary slice-like inputs as a []float32
func coerceToFloat32Slice(value any) ([]float32, bool, error) {
	switch v := value.(type) {
	case []float32:
		out := make([]float32, len(v))
		copy(out, v)
		return out, true, nil
	case []float64:
		out := make([]float32, len(v))
		for i, n := range v {
			out[i] = float32(n)
		}
		return out, true, nil
	case []byte:
		// raw bytes are a blob, not a list of numbers
		return nil, false, nil
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false, nil
	}
	n := rv.Len()
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := toFloat32(rv.Index(i).Interface())
		if err != nil {
			return nil, false, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = f
	}
	return out, true, nil
}

func toFloat32(el any) (float32, error) {
	switch x := el.(type) {
	case float64:
		return float32(x), nil
	case float32:
		return x, nil
	case int:
		return float32(x), nil
	case int64:
		return float32(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid json.Number: %v", err)
		}
		return float32(f), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric string: %v", err)
		}
		return float32(f), nil
	}
	return 0, fmt.Errorf("unsupported vector element type %T", el)
}
