package razroom

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	ParamMaxPlayers    = "max_players"
	ParamTimePerPlayer = "time_per_player"
	ParamRanked        = "is_ranked"
)

type ParamType string

const (
	TypeInt  ParamType = "int"
	TypeBool ParamType = "bool"
	TypeTime ParamType = "time"
)

// Param is one declared configuration field. Time bounds are in seconds.
type Param struct {
	Name string
	Type ParamType
	Min  float64
	Max  float64
}

type Schema struct {
	Params []Param
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type schemaFile struct {
	Params []struct {
		Name string          `json:"name"`
		Type ParamType       `json:"type"`
		Min  json.RawMessage `json:"min"`
		Max  json.RawMessage `json:"max"`
	} `json:"params"`
}

// ParseSchema reads a schema file. Int bounds are numbers, time bounds are
// "MM:SS" (or "HH:MM:SS") strings.
func ParseSchema(data []byte) (Schema, error) {
	var f schemaFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Schema{}, err
	}
	var s Schema
	for _, p := range f.Params {
		param := Param{Name: p.Name, Type: p.Type}
		switch p.Type {
		case TypeInt:
			if err := json.Unmarshal(p.Min, &param.Min); err != nil {
				return Schema{}, fmt.Errorf("%s: bad min: %w", p.Name, err)
			}
			if err := json.Unmarshal(p.Max, &param.Max); err != nil {
				return Schema{}, fmt.Errorf("%s: bad max: %w", p.Name, err)
			}
		case TypeTime:
			var lo, hi string
			if err := json.Unmarshal(p.Min, &lo); err != nil {
				return Schema{}, fmt.Errorf("%s: bad min: %w", p.Name, err)
			}
			if err := json.Unmarshal(p.Max, &hi); err != nil {
				return Schema{}, fmt.Errorf("%s: bad max: %w", p.Name, err)
			}
			var err error
			if param.Min, err = clockSeconds(lo); err != nil {
				return Schema{}, fmt.Errorf("%s: %w", p.Name, err)
			}
			if param.Max, err = clockSeconds(hi); err != nil {
				return Schema{}, fmt.Errorf("%s: %w", p.Name, err)
			}
		case TypeBool:
		default:
			return Schema{}, fmt.Errorf("%s: parameter type %q has no checking", p.Name, p.Type)
		}
		s.Params = append(s.Params, param)
	}
	for _, required := range []string{ParamMaxPlayers, ParamTimePerPlayer, ParamRanked} {
		if _, ok := s.param(required); !ok {
			return Schema{}, fmt.Errorf("schema is missing %s", required)
		}
	}
	return s, nil
}

func MustParseSchema(data []byte) Schema {
	s, err := ParseSchema(data)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schema) param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Validate checks every declared parameter and returns the normalized
// configuration. Undeclared keys are dropped.
func (s Schema) Validate(values map[string]any) (*Config, error) {
	params := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		raw, ok := values[p.Name]
		if !ok {
			return nil, &ValidationError{Field: p.Name, Reason: "missing"}
		}
		v, err := p.check(raw)
		if err != nil {
			return nil, err
		}
		params[p.Name] = v
	}
	return newConfig(params), nil
}

func (p Param) check(raw any) (any, error) {
	switch p.Type {
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, &ValidationError{Field: p.Name, Reason: "expected a boolean"}
		}
		return b, nil
	case TypeInt:
		n, ok := number(raw)
		if !ok || n != math.Trunc(n) {
			return nil, &ValidationError{Field: p.Name, Reason: "expected an integer"}
		}
		if n < p.Min || n > p.Max {
			return nil, &ValidationError{Field: p.Name, Reason: fmt.Sprintf("must be between %g and %g", p.Min, p.Max)}
		}
		return int(n), nil
	case TypeTime:
		n, ok := number(raw)
		if !ok {
			if str, isStr := raw.(string); isStr {
				secs, err := clockSeconds(str)
				n, ok = secs, err == nil
			}
		}
		if !ok {
			return nil, &ValidationError{Field: p.Name, Reason: "expected a duration in seconds"}
		}
		if n < p.Min || n > p.Max {
			return nil, &ValidationError{Field: p.Name, Reason: fmt.Sprintf("must be between %gs and %gs", p.Min, p.Max)}
		}
		return n, nil
	}
	return nil, &ValidationError{Field: p.Name, Reason: fmt.Sprintf("unknown type %q", p.Type)}
}

func number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func clockSeconds(s string) (float64, error) {
	var secs, mult float64 = 0, 1
	parts := strings.Split(s, ":")
	for i := len(parts) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, fmt.Errorf("bad clock value %q", s)
		}
		secs += float64(n) * mult
		mult *= 60
	}
	return secs, nil
}

// Config is a validated room configuration.
type Config struct {
	MaxPlayers    int
	TimePerPlayer time.Duration
	Ranked        bool
	Params        map[string]any
}

func newConfig(params map[string]any) *Config {
	c := &Config{Params: params}
	if n, ok := number(params[ParamMaxPlayers]); ok {
		c.MaxPlayers = int(n)
	}
	if n, ok := number(params[ParamTimePerPlayer]); ok {
		c.TimePerPlayer = time.Duration(n * float64(time.Second))
	}
	c.Ranked, _ = params[ParamRanked].(bool)
	return c
}

func (c *Config) Int(name string) int {
	n, _ := number(c.Params[name])
	return int(n)
}

func (c *Config) Bool(name string) bool {
	b, _ := c.Params[name].(bool)
	return b
}

func (c *Config) Seconds(name string) float64 {
	n, _ := number(c.Params[name])
	return n
}

func (c *Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Params)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return err
	}
	*c = *newConfig(params)
	return nil
}
