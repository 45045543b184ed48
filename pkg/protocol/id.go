package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// JsonRpcVersion is the only JSON-RPC protocol version this codec speaks.
const JsonRpcVersion = "2.0"

// IdKind discriminates the tagged union that is a JSON-RPC id: a request's
// id MUST be a string, a number, or null by convention; an absent id on an
// inbound request means "this is a notification", not "id is null".
type IdKind int

const (
	IdKindNull IdKind = iota
	IdKindString
	IdKindInt
)

// Id is the tagged string|int|null union used for request/response
// correlation. The zero value is the null id.
type Id struct {
	kind IdKind
	str  string
	num  int64
}

// NullId is the explicit null id, used for parse-error responses where no
// request id could be recovered.
var NullId = Id{kind: IdKindNull}

func NewStringId(s string) Id { return Id{kind: IdKindString, str: s} }
func NewIntId(i int64) Id { return Id{kind: IdKindInt, num: i} }

func (id Id) IsNull() bool { return id.kind == IdKindNull }
func (id Id) Kind() IdKind { return id.kind }

// Int64 returns the numeric value of an int-kind id. Returns (0, false) for
// any other kind.
func (id Id) Int64() (int64, bool) {
	if id.kind != IdKindInt {
		return 0, false
	}
	return id.num, true
}

// Equal compares by tag and value, per the protocol.
func (id Id) Equal(other Id) bool {
	if id.kind != other.kind {
		return false
	}
	switch id.kind {
	case IdKindString:
		return id.str == other.str
	case IdKindInt:
		return id.num == other.num
	default:
		return true
	}
}

func (id Id) String() string {
	switch id.kind {
	case IdKindString:
		return id.str
	case IdKindInt:
		return strconv.FormatInt(id.num, 10)
	default:
		return "null"
	}
}

func (id Id) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case IdKindString:
		return json.Marshal(id.str)
	case IdKindInt:
		return json.Marshal(id.num)
	default:
		return []byte("null"), nil
	}
}

func (id *Id) UnmarshalJSON(data []byte) error {
	trimmed := string(data)
	if trimmed == "null" || trimmed == "" {
		*id = NullId
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid string id: %w", err)
		}
		*id = NewStringId(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id does not fit a 64-bit signed integer: %w", err)
	}
	*id = NewIntId(n)
	return nil
}
