package v1

import (
	"encoding/json"
	"fmt"
)

// RpcCall names one widget computation. ID, when set, keys its result.
type RpcCall struct {
	RpcName string         `json:"rpc_name"`
	ID      string         `json:"id,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

type WidgetBatch struct {
	Rpcs []RpcCall `json:"rpcs"`
}

// Outcome is one slot of a widget response: a value or {"error": "..."}.
type Outcome struct {
	Value json.RawMessage
	Err   string
}

func (o *Outcome) UnmarshalJSON(b []byte) error {
	// a computed value may itself be an object, only a lone string "error" key marks a failure
	var fields map[string]json.RawMessage
	if json.Unmarshal(b, &fields) == nil && len(fields) == 1 {
		if raw, ok := fields["error"]; ok {
			var msg string
			if json.Unmarshal(raw, &msg) == nil {
				o.Err = msg
				return nil
			}
		}
	}
	o.Value = append(json.RawMessage(nil), b...)
	return nil
}

func (o Outcome) Failed() bool {
	return o.Err != ""
}

// Decode unmarshals the computed value into dst.
func (o Outcome) Decode(dst any) error {
	if o.Failed() {
		return fmt.Errorf("widget failed: %s", o.Err)
	}
	return json.Unmarshal(o.Value, dst)
}

type WidgetResult map[string]Outcome

type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ID           string `json:"id"`
	Email        string `json:"email"`
}

type Profile struct {
	ID      string           `json:"id"`
	Email   string           `json:"email"`
	KPI     []map[string]any `json:"kpi"`
	Table   []map[string]any `json:"table"`
	Chart   []map[string]any `json:"chart"`
	Maps    []map[string]any `json:"maps"`
	Widgets []map[string]any `json:"widgets"`
}

// ChangeEvent is the webhook payload describing one upstream row change.
type ChangeEvent struct {
	Table     string          `json:"table"`
	Type      string          `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

type Invalidation struct {
	DeletedKey string `json:"deleted_key"`
	Existed    bool   `json:"existed"`
}

type EventAck struct {
	Table       string `json:"table"`
	Invalidated bool   `json:"invalidated"`
}
