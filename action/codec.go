// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrUnknownType is returned when decoding a payload for an unrecognized action type.
var ErrUnknownType = errors.New("unknown action type")

// Encode serializes a typed payload into the form stored in the pending-action log.
// The output is compact JSON with fields in declaration order, so equal payloads
// always encode to equal bytes.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil payload")
	}
	if !p.ActionType().Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, p.ActionType())
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.ActionType(), err)
	}
	return data, nil
}

// Decode restores the typed payload for t from its stored form. The returned value
// is always a struct value (e.g. SendMessage, not *SendMessage).
func Decode(t Type, data []byte) (Payload, error) {
	ptr := newPayload(t)
	if ptr == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return deref(ptr), nil
}

// Value returns p as a struct value, dereferencing pointer variants such as
// *LikePost. A nil pointer yields nil.
func Value(p Payload) Payload {
	if p == nil {
		return nil
	}
	if rv := reflect.ValueOf(p); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return deref(p)
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *SendMessage:
		return *v
	case *CreatePost:
		return *v
	case *UploadStory:
		return *v
	case *LikePost:
		return *v
	case *UnlikePost:
		return *v
	case *SavePost:
		return *v
	case *UnsavePost:
		return *v
	case *AddComment:
		return *v
	case *FollowUser:
		return *v
	case *UnfollowUser:
		return *v
	default:
		return p
	}
}

// Fields is the untyped view of a payload: named fields mapped to strings, integers,
// floats, booleans, lists and nested maps.
type Fields map[string]any

// EncodeFields serializes f. Map keys are emitted in sorted order.
func EncodeFields(f Fields) ([]byte, error) {
	data, err := json.Marshal(map[string]any(f))
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return data, nil
}

// DecodeFields is the inverse of EncodeFields. Whole numbers decode as int64, lists
// whose elements are all strings decode as []string, and nested objects decode as
// map[string]any.
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		out[k] = normalize(v)
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		strs := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				strs = nil
				break
			}
			strs = append(strs, s)
		}
		if strs != nil {
			return strs
		}
		list := make([]any, len(x))
		for i, e := range x {
			list[i] = normalize(e)
		}
		return list
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = normalize(e)
		}
		return m
	default:
		return v
	}
}

// FieldsOf returns the untyped view of p.
func FieldsOf(p Payload) (Fields, error) {
	data, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return DecodeFields(data)
}

// FromFields builds the typed payload for t from an untyped field map.
func FromFields(t Type, f Fields) (Payload, error) {
	data, err := EncodeFields(f)
	if err != nil {
		return nil, err
	}
	return Decode(t, data)
}
