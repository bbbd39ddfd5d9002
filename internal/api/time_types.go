package api

import (
	"encoding/json/v2"
	"fmt"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// FlexTime unmarshals from either an RFC3339 string or epoch milliseconds
// (number or string), so replay tooling can post event logs regardless of
// how the capturing side formatted timestamps. It always marshals to
// RFC3339.
type FlexTime struct {
	time.Time
}

// UnmarshalJSON handles flexible time parsing from JSON.
func (ft *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ft.Time = t
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			ft.Time = time.UnixMilli(ms)
			return nil
		}
		return fmt.Errorf("cannot parse time string: %s", s)
	}

	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	return fmt.Errorf("cannot parse time value: %s", data)
}

// Schema leaves the type open so both string and number forms validate.
func (ft FlexTime) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{Description: "RFC3339 timestamp or epoch milliseconds"}
}

// MarshalJSON always emits RFC3339.
func (ft FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time.Format(time.RFC3339Nano))
}
