package protocol

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/vango-dev/treediff/pkg/vdom"
)

// ValueType tags an encoded prop value.
type ValueType uint8

const (
	ValueNull    ValueType = 0x00
	ValueFalse   ValueType = 0x01
	ValueTrue    ValueType = 0x02
	ValueInt     ValueType = 0x03 // zigzag varint
	ValueFloat   ValueType = 0x04 // IEEE 754, big-endian
	ValueString  ValueType = 0x05
	ValueList    ValueType = 0x06
	ValueMap     ValueType = 0x07 // keys sorted on encode
	ValueRemoved ValueType = 0x08 // vdom.Removed
)

// Value errors.
var (
	ErrUnsupportedValue = errors.New("protocol: unsupported value type")
	ErrInvalidValueType = errors.New("protocol: invalid value type")
)

// encodeValue writes v with its tag. Decoding yields nil, bool, int64,
// float64, string, []any, map[string]any or vdom.Removed.
func encodeValue(e *Encoder, v any, depth, max int) error {
	if err := checkDepth(depth, max); err != nil {
		return err
	}

	switch val := v.(type) {
	case nil:
		e.PutByte(byte(ValueNull))
	case bool:
		if val {
			e.PutByte(byte(ValueTrue))
		} else {
			e.PutByte(byte(ValueFalse))
		}
	case string:
		e.PutByte(byte(ValueString))
		e.PutString(val)
	case int:
		writeInt(e, int64(val))
	case int8:
		writeInt(e, int64(val))
	case int16:
		writeInt(e, int64(val))
	case int32:
		writeInt(e, int64(val))
	case int64:
		writeInt(e, val)
	case uint8:
		writeInt(e, int64(val))
	case uint16:
		writeInt(e, int64(val))
	case uint32:
		writeInt(e, int64(val))
	case uint:
		writeUint(e, uint64(val))
	case uint64:
		writeUint(e, val)
	case float32:
		writeFloat(e, float64(val))
	case float64:
		writeFloat(e, val)
	case vdom.RemovedProp:
		e.PutByte(byte(ValueRemoved))
	case []any:
		e.PutByte(byte(ValueList))
		e.PutCount(len(val))
		for _, item := range val {
			if err := encodeValue(e, item, depth+1, max); err != nil {
				return err
			}
		}
	case map[string]any:
		return encodeMap(e, val, depth, max)
	case vdom.Props:
		return encodeMap(e, val, depth, max)
	default:
		return encodeReflect(e, reflect.ValueOf(v), depth, max)
	}
	return nil
}

func writeInt(e *Encoder, v int64) {
	e.PutByte(byte(ValueInt))
	e.PutVarint(v)
}

func writeUint(e *Encoder, v uint64) {
	if v > math.MaxInt64 {
		writeFloat(e, float64(v))
		return
	}
	writeInt(e, int64(v))
}

func writeFloat(e *Encoder, v float64) {
	e.PutByte(byte(ValueFloat))
	e.PutFloat64(v)
}

func encodeMap(e *Encoder, m map[string]any, depth, max int) error {
	e.PutByte(byte(ValueMap))
	e.PutCount(len(m))
	for _, k := range sortedKeys(m) {
		e.PutString(k)
		if err := encodeValue(e, m[k], depth+1, max); err != nil {
			return err
		}
	}
	return nil
}

// encodeReflect handles typed slices, string-keyed maps and pointers that
// snapshots decoded by other libraries may contain.
func encodeReflect(e *Encoder, rv reflect.Value, depth, max int) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			e.PutByte(byte(ValueNull))
			return nil
		}
		return encodeValue(e, rv.Elem().Interface(), depth, max)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			e.PutByte(byte(ValueNull))
			return nil
		}
		e.PutByte(byte(ValueList))
		e.PutCount(rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(e, rv.Index(i).Interface(), depth+1, max); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeMap(e, m, depth, max)

	case reflect.String:
		e.PutByte(byte(ValueString))
		e.PutString(rv.String())
		return nil

	case reflect.Bool:
		return encodeValue(e, rv.Bool(), depth, max)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeInt(e, rv.Int())
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		writeUint(e, rv.Uint())
		return nil

	case reflect.Float32, reflect.Float64:
		writeFloat(e, rv.Float())
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type())
}

func decodeValue(d *Decoder, depth, max int) (any, error) {
	if err := checkDepth(depth, max); err != nil {
		return nil, err
	}

	typeByte, err := d.ReadByte()
	if err != nil {
		return nil, err
	}

	switch ValueType(typeByte) {
	case ValueNull:
		return nil, nil

	case ValueFalse:
		return false, nil

	case ValueTrue:
		return true, nil

	case ValueInt:
		return d.ReadVarint()

	case ValueFloat:
		return d.ReadFloat64()

	case ValueString:
		return d.ReadString()

	case ValueRemoved:
		return vdom.Removed, nil

	case ValueList:
		count, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		list := make([]any, count)
		for i := 0; i < count; i++ {
			val, err := decodeValue(d, depth+1, max)
			if err != nil {
				return nil, err
			}
			list[i] = val
		}
		return list, nil

	case ValueMap:
		count, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		obj := make(map[string]any, count)
		for i := 0; i < count; i++ {
			key, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			val, err := decodeValue(d, depth+1, max)
			if err != nil {
				return nil, err
			}
			obj[key] = val
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidValueType, typeByte)
	}
}

// encodeProps writes a counted list of name/value pairs in name order.
func encodeProps(e *Encoder, props vdom.Props, max int) error {
	e.PutCount(len(props))
	for _, k := range sortedKeys(props) {
		e.PutString(k)
		if err := encodeValue(e, props[k], 0, max); err != nil {
			return fmt.Errorf("prop %q: %w", k, err)
		}
	}
	return nil
}

func decodeProps(d *Decoder, max int) (vdom.Props, error) {
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	props := make(vdom.Props, count)
	for i := 0; i < count; i++ {
		key, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(d, 0, max)
		if err != nil {
			return nil, err
		}
		props[key] = val
	}
	return props, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
