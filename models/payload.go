package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ValueKind тип значения в payload уведомления
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindBool   ValueKind = "bool"
	KindNumber ValueKind = "number"
	KindString ValueKind = "string"
	KindList   ValueKind = "list"
	KindMap    ValueKind = "map"
	KindRaw    ValueKind = "raw"
)

// RawPayloadKey ключ, под которым отдается нераспознанный payload
const RawPayloadKey = "raw"

// Value одно значение payload. Заполнено только поле, соответствующее Kind.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number decimal.Decimal
	Str    string
	List   []Value
	Map    map[string]Value
}

// Null значение JSON null
func Null() Value { return Value{Kind: KindNull} }

// Bool логическое значение
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Number десятичное число без потери точности
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Number: d} }

// Int целое число, хранится как Number
func Int(i int64) Value { return Value{Kind: KindNumber, Number: decimal.NewFromInt(i)} }

// String строковое значение
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// List массив значений в заданном порядке
func List(items ...Value) Value { return Value{Kind: KindList, List: items} }

// Map объект с вложенными значениями
func Map(entries map[string]Value) Value { return Value{Kind: KindMap, Map: entries} }

// Raw значение, которое не удалось разобрать как JSON
func Raw(s string) Value { return Value{Kind: KindRaw, Str: s} }

// MarshalJSON кодирует значение по его Kind. Числа пишутся как есть,
// Raw пишется строкой, пустой Kind дает null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull, "":
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindNumber:
		return []byte(v.Number.String()), nil
	case KindString, KindRaw:
		return json.Marshal(v.Str)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindMap:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	default:
		return nil, fmt.Errorf("неизвестный тип значения: %s", v.Kind)
	}
}

// UnmarshalJSON разбирает любой JSON в Value. Числа читаются через
// json.Number, чтобы не терять точность.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	converted, err := fromInterface(raw)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}

func fromInterface(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return Value{}, err
		}
		return Number(d), nil
	case string:
		return String(x), nil
	case []interface{}:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			v, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return List(items...), nil
	case map[string]interface{}:
		entries := make(map[string]Value, len(x))
		for key, item := range x {
			v, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			entries[key] = v
		}
		return Map(entries), nil
	default:
		return Value{}, fmt.Errorf("неподдерживаемое значение %T", raw)
	}
}

// Payload структурированные данные уведомления: ключ -> значение
type Payload map[string]Value

// DecodePayload разбирает сохраненный payload. Пустая строка дает пустой
// payload, а испорченный JSON возвращается целиком под ключом "raw".
func DecodePayload(stored string) Payload {
	if strings.TrimSpace(stored) == "" {
		return Payload{}
	}
	var p Payload
	if err := json.Unmarshal([]byte(stored), &p); err != nil || p == nil {
		return Payload{RawPayloadKey: Raw(stored)}
	}
	return p
}

// Encode сериализует payload для хранения
func (p Payload) Encode() string {
	if len(p) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]Value(p))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// IsRaw true, если payload не удалось разобрать при чтении
func (p Payload) IsRaw() bool {
	v, ok := p[RawPayloadKey]
	return ok && len(p) == 1 && v.Kind == KindRaw
}

// Amount возвращает числовое значение по ключу "amount", если оно есть
func (p Payload) Amount() (decimal.Decimal, bool) {
	v, ok := p["amount"]
	if !ok || v.Kind != KindNumber {
		return decimal.Zero, false
	}
	return v.Number, true
}

// Keys отсортированный список ключей
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
