package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Tokens for values JSON numbers cannot hold. A diverged model still has to
// be checkpointable.
const (
	tokenNaN    = "NaN"
	tokenPosInf = "+Inf"
	tokenNegInf = "-Inf"
)

// values is the wire form of one parameter. Finite entries are JSON numbers
// in shortest round-trip form; NaN and infinities are quoted tokens.
type values []float64

func (v values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		switch {
		case math.IsNaN(x):
			buf.WriteString(`"` + tokenNaN + `"`)
		case math.IsInf(x, 1):
			buf.WriteString(`"` + tokenPosInf + `"`)
		case math.IsInf(x, -1):
			buf.WriteString(`"` + tokenNegInf + `"`)
		default:
			buf.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (v *values) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(values, len(raw))
	for i, r := range raw {
		if len(r) > 0 && r[0] == '"' {
			var tok string
			if err := json.Unmarshal(r, &tok); err != nil {
				return err
			}
			switch tok {
			case tokenNaN:
				out[i] = math.NaN()
			case tokenPosInf:
				out[i] = math.Inf(1)
			case tokenNegInf:
				out[i] = math.Inf(-1)
			default:
				return fmt.Errorf("value %d: unknown token %q", i, tok)
			}
			continue
		}
		if err := json.Unmarshal(r, &out[i]); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
	}
	*v = out
	return nil
}

func toWire(s State) map[string]values {
	out := make(map[string]values, len(s))
	for k, v := range s {
		out[k] = values(v)
	}
	return out
}

func fromWire(w map[string]values) State {
	out := make(State, len(w))
	for k, v := range w {
		out[k] = []float64(v)
	}
	return out
}
