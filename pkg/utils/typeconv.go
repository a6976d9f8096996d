// Package utils converts between driver values and record text.
package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stringify renders a value read from a database as record text. A nil
// value stays nil so normalization can treat it as absent.
func Stringify(val interface{}) *string {
	var s string
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		s = v.Format(time.RFC3339)
	case primitive.DateTime:
		s = v.Time().UTC().Format(time.RFC3339)
	case primitive.ObjectID:
		s = v.Hex()
	case primitive.Decimal128:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		s = fmt.Sprintf("%v", v)
	}
	return &s
}

// Convert turns record text into a typed value for stores that keep
// types, such as MongoDB. Empty text converts to nil for every type but
// string.
func Convert(val, typ string) (interface{}, error) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if val == "" && typ != "string" && typ != "" {
		return nil, nil
	}
	switch typ {
	case "datetime", "date":
		return ConvertDateTime(val)
	case "int":
		return ConvertToInt(val)
	case "float":
		return strconv.ParseFloat(val, 64)
	case "bool":
		return strconv.ParseBool(val)
	case "string", "":
		return val, nil
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}
}

func ConvertDateTime(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case primitive.DateTime:
		return v.Time(), nil
	case string:
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		for _, f := range formats {
			if t, err := time.Parse(f, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v))
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

func ConvertToInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	case []byte:
		return strconv.Atoi(string(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}
