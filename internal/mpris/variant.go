package mpris

import "github.com/godbus/dbus/v5"

// Variant coercion helpers. Endpoints are sloppy about integer widths,
// so numeric conversions accept every width the bus can carry.

func asString(v dbus.Variant) (string, bool) {
	switch val := v.Value().(type) {
	case string:
		return val, true
	case dbus.ObjectPath:
		return string(val), true
	}
	return "", false
}

func asBool(v dbus.Variant) (bool, bool) {
	b, ok := v.Value().(bool)
	return b, ok
}

func asFloat(v dbus.Variant) (float64, bool) {
	switch val := v.Value().(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	}
	return 0, false
}

func asInt64(v dbus.Variant) (int64, bool) {
	switch val := v.Value().(type) {
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case uint32:
		return int64(val), true
	}
	return 0, false
}

func asStringList(v dbus.Variant) ([]string, bool) {
	switch val := v.Value().(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}
