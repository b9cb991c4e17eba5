// Package utils provides struct/map conversions used to move typed
// application data through entity.Entity's map[string]any envelope.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// StructToMap marshals record to JSON and back into a map[string]any,
// preserving nested objects as json.RawMessage so their exact shape survives
// the round trip. record must be a struct or a pointer to one.
func StructToMap[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("StructToMap: input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("StructToMap: input record cannot be a nil pointer")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("StructToMap: input record must be a struct or pointer to struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToMap: marshaling record: %w", err)
	}

	var tempMap map[string]any
	if err := json.Unmarshal(jsonBytes, &tempMap); err != nil {
		return nil, fmt.Errorf("StructToMap: unmarshaling into map: %w", err)
	}

	resultMap := make(map[string]any, len(tempMap))
	for key, v := range tempMap {
		if nestedMap, ok := v.(map[string]any); ok {
			nestedBytes, err := json.Marshal(nestedMap)
			if err != nil {
				return nil, fmt.Errorf("StructToMap: re-marshaling nested field %q: %w", key, err)
			}
			resultMap[key] = json.RawMessage(nestedBytes)
		} else {
			resultMap[key] = v
		}
	}

	return resultMap, nil
}

// MapToStruct is StructToMap's inverse: it marshals input back to JSON and
// unmarshals it into a new T. T must be a struct type, or a pointer to one.
func MapToStruct[T any](input map[string]any) (T, error) {
	var zero T

	if input == nil {
		return zero, fmt.Errorf("MapToStruct: input map cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToStruct: T must be a struct or pointer to struct, got %s", typ.Kind())
	}

	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("MapToStruct: marshaling input map: %w", err)
	}

	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("MapToStruct: unmarshaling into target type: %w", err)
	}

	return result, nil
}
