package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// jsonTensor is the explicit JSON form of a tensor. Inputs may also be
// given as bare (nested) arrays or scalars, taking the dtype from the spec.
type jsonTensor struct {
	DType tensor.DataType `json:"dtype"`
	Shape []int           `json:"shape"`
	Data  []any           `json:"data"`
}

// readTensors reads a JSON object of named tensors from path, or from
// stdin when path is "-".
func readTensors(path string, stdin io.Reader, specs []spec.TensorSpec) (map[string]*tensor.Tensor, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // G304: path is a command-line argument
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tensors: %w", err)
	}
	return decodeTensors(data, specs)
}

// decodeTensors decodes a JSON object of named tensors. dtypes missing
// from the document come from specs, or are inferred for undeclared names.
func decodeTensors(data []byte, specs []spec.TensorSpec) (map[string]*tensor.Tensor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("tensors must be a JSON object: %w", err)
	}

	out := make(map[string]*tensor.Tensor, len(doc))
	for name, raw := range doc {
		t, err := decodeTensor(raw, specs, name)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func decodeTensor(raw json.RawMessage, specs []spec.TensorSpec, name string) (*tensor.Tensor, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	declared := tensor.Invalid
	if s, ok := spec.Find(specs, name); ok {
		declared = s.DType
	}

	if _, ok := v.(map[string]any); ok {
		var jt jsonTensor
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&jt); err != nil {
			return nil, err
		}
		dtype := jt.DType
		if dtype == tensor.Invalid {
			dtype = declared
		}
		if dtype == tensor.Invalid {
			dtype = inferDType(jt.Data)
		}
		var shape tensor.Shape
		if jt.Shape != nil {
			shape = tensor.Shape(jt.Shape)
		}
		return tensor.FromValues(dtype, shape, jt.Data)
	}

	shape, flat, err := flatten(v)
	if err != nil {
		return nil, err
	}
	dtype := declared
	if dtype == tensor.Invalid {
		dtype = inferDType(flat)
	}
	return tensor.FromValues(dtype, shape, flat)
}

// flatten turns a nested array into its shape and row-major elements.
// A non-array value is a scalar.
func flatten(v any) (tensor.Shape, []any, error) {
	list, ok := v.([]any)
	if !ok {
		return tensor.Shape{}, []any{v}, nil
	}
	if len(list) == 0 {
		return tensor.Shape{0}, nil, nil
	}

	var (
		inner tensor.Shape
		flat  []any
	)
	for i, item := range list {
		s, f, err := flatten(item)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			inner = s
		} else if !inner.Equal(s) {
			return nil, nil, fmt.Errorf("ragged array: element %d has shape %v, element 0 has %v", i, s, inner)
		}
		flat = append(flat, f...)
	}
	return append(tensor.Shape{len(list)}, inner...), flat, nil
}

// inferDType picks a dtype for undeclared tensors from their elements.
func inferDType(data []any) tensor.DataType {
	dtype := tensor.Int64
	for _, d := range data {
		switch n := d.(type) {
		case string:
			return tensor.String
		case bool:
			return tensor.Bool
		case json.Number:
			if _, err := n.Int64(); err != nil {
				dtype = tensor.Float64
			}
		}
	}
	return dtype
}

// encodeTensors converts named tensors to their explicit JSON form.
func encodeTensors(ts map[string]*tensor.Tensor) map[string]jsonTensor {
	out := make(map[string]jsonTensor, len(ts))
	for name, t := range ts {
		out[name] = jsonTensor{
			DType: t.DType(),
			Shape: append([]int{}, t.Shape()...),
			Data:  t.Elements(),
		}
	}
	return out
}
