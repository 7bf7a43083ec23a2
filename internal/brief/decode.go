package brief

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// ErrSchema indicates model output that does not match the section schema.
var ErrSchema = errors.New("output does not match brief schema")

var validate = validator.New()

// synthesis is the wire shape of model output: all five sections required.
type synthesis struct {
	RenewalTerms    *RenewalTerms    `json:"renewal_terms" validate:"required"`
	Pricing         *Pricing         `json:"pricing" validate:"required"`
	Usage           *UsageInsights   `json:"usage" validate:"required"`
	RiskFlags       *RiskFlags       `json:"risk_flags" validate:"required"`
	NegotiationPlan *NegotiationPlan `json:"negotiation_plan" validate:"required"`
}

// DecodeSections parses a JSON object into Sections and validates it.
// Unknown keys are ignored and integral numbers such as 60.0 are
// accepted for integer fields; a missing section, a malformed date or a
// citation without doc_id fails with ErrSchema.
func DecodeSections(data []byte) (Sections, error) {
	data, err := integralNumbers(data)
	if err != nil {
		return Sections{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	var raw synthesis
	if err := json.Unmarshal(data, &raw); err != nil {
		return Sections{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := validate.Struct(raw); err != nil {
		return Sections{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	s := Sections{
		RenewalTerms:    *raw.RenewalTerms,
		Pricing:         *raw.Pricing,
		Usage:           *raw.Usage,
		RiskFlags:       *raw.RiskFlags,
		NegotiationPlan: *raw.NegotiationPlan,
	}
	s.normalize()
	return s, nil
}

// Normalized returns s with nil lists replaced by empty ones.
func (s Sections) Normalized() Sections {
	s.normalize()
	return s
}

// integralNumbers re-encodes data with every number that has an integral
// value written in plain integer form.
func integralNumbers(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return json.Marshal(rewriteIntegral(v))
}

func rewriteIntegral(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = rewriteIntegral(e)
		}
	case []any:
		for i, e := range t {
			t[i] = rewriteIntegral(e)
		}
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t
		}
		f, err := t.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
	}
	return v
}
