package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
)

// ParseTraceNPY reads a 1-D NumPy array saved by the acquisition scripts.
// Integer captures (raw ADC codes) and float32 arrays are widened to float64.
func ParseTraceNPY(filepath string) (*Trace, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open npy file: %w", err)
	}
	defer file.Close()

	trace, err := readTraceNPY(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath, err)
	}
	trace.Source = filepath
	return trace, nil
}

func readTraceNPY(r io.Reader) (*Trace, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	trace := NewTrace(nil, 0, "")
	shape := npy.Header.Descr.Shape
	if len(shape) != 1 {
		if len(shape) == 2 && (shape[0] == 1 || shape[1] == 1) {
			trace.ParseErrors = append(trace.ParseErrors, fmt.Sprintf("Warning: flattening %v array to 1-D.", shape))
		} else {
			return nil, fmt.Errorf("expected a 1-D trace, got shape %v", shape)
		}
	}

	n := 1
	for _, d := range shape {
		n *= d
	}

	var samples []float64
	switch dtype := npy.Header.Descr.Type; dtype {
	case "<f8", "f8", "=f8", ">f8":
		samples = make([]float64, n)
		err = npy.Read(&samples)
	case "<f4", "f4", "=f4", ">f4":
		samples, err = readWidened[float32](npy, n)
	case "|i1", "i1":
		samples, err = readWidened[int8](npy, n)
	case "|u1", "u1":
		samples, err = readWidened[uint8](npy, n)
	case "<i2", "i2", ">i2":
		samples, err = readWidened[int16](npy, n)
	case "<u2", "u2", ">u2":
		samples, err = readWidened[uint16](npy, n)
	case "<i4", "i4", ">i4":
		samples, err = readWidened[int32](npy, n)
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", dtype)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read npy data: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("npy array is empty")
	}
	trace.Samples = samples
	return trace, nil
}

type rawSample interface {
	int8 | uint8 | int16 | uint16 | int32 | float32
}

// readWidened reads n values of the on-disk type T and converts them to float64.
func readWidened[T rawSample](npy *npyio.Reader, n int) ([]float64, error) {
	raw := make([]T, n)
	if err := npy.Read(&raw); err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, nil
}
