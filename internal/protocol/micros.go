package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Micros is a time value in bus-native microseconds. It crosses the wire
// as a decimal string so 64-bit positions survive JSON number parsing on
// the client side intact.
type Micros int64

func (m Micros) String() string {
	return strconv.FormatInt(int64(m), 10)
}

func (m Micros) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both the canonical string form and a bare JSON
// number, which some clients still send for seek targets.
func (m *Micros) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("protocol: invalid microsecond value %q", s)
		}
		*m = Micros(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("protocol: invalid microsecond value: %s", data)
	}
	*m = Micros(n)
	return nil
}
