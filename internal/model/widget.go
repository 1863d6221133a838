package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Params are the keyword arguments of one RPC call.
type Params map[string]any

func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	b, _ := json.Marshal(v)
	return strings.Trim(string(b), `"`)
}

// Float returns the numeric param or def when absent or invalid.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (p Params) Int(key string, def int) int {
	return int(p.Float(key, float64(def)))
}

// RpcRequest names one computation and its params. ID, when set, is the result key.
type RpcRequest struct {
	RpcName string `json:"rpc_name"`
	ID      string `json:"id,omitempty"`
	Params  Params `json:"params,omitempty"`
}

// Outcome is the result slot of one RPC: either a value or an error message.
type Outcome struct {
	Value any
	Err   string
}

func (o Outcome) Failed() bool {
	return o.Err != ""
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Failed() {
		return json.Marshal(map[string]string{"error": o.Err})
	}
	return json.Marshal(o.Value)
}

// WidgetResult holds exactly one outcome per request of a batch.
type WidgetResult map[string]Outcome
