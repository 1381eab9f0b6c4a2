package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// errNoMatch tells the chain to try the next parser.
var errNoMatch = errors.New("no match")

// Payload keys understood in structured messages.
const (
	keyTemperature = "temperature"
	keyHumidity    = "humidity"
	keyActuator    = "actuator"
	keyLED         = "led"
)

// sensorParser turns a raw sensor payload into a patch. It returns
// errNoMatch when the payload is not in its format.
type sensorParser struct {
	name  string
	parse func(payload []byte) (Patch, error)
}

// actuatorParser turns a raw actuator-state payload into a state.
type actuatorParser struct {
	name  string
	parse func(payload []byte) (bool, error)
}

// sensorParsers is tried in order; the first match wins.
var sensorParsers = []sensorParser{
	{name: "json", parse: parseSensorJSON},
	{name: "csv", parse: parseSensorCSV},
}

// actuatorParsers is tried in order; the first match wins.
var actuatorParsers = []actuatorParser{
	{name: "json", parse: parseActuatorJSON},
	{name: "token", parse: parseActuatorToken},
}

// ParseSensor decodes a sensor-topic payload.
//
// Accepted formats, in order:
//
//	{"temperature": 22.5, "humidity": 60}   either key may be absent; values may be numeric strings
//	22.5,60                                 first field temperature, second humidity, extras ignored
func ParseSensor(payload []byte) (Patch, error) {
	for _, p := range sensorParsers {
		patch, err := p.parse(payload)
		if errors.Is(err, errNoMatch) {
			continue
		}
		if err != nil {
			return Patch{}, fmt.Errorf("%s sensor payload: %w", p.name, err)
		}
		return patch, nil
	}
	return Patch{}, ErrUnrecognisedPayload
}

// ParseActuator decodes an actuator-state payload.
//
// Accepted formats, in order:
//
//	{"actuator": true} or {"led": "on"}     bool, number (non-zero is on) or token
//	ON / off / 1 / 0 / true / no ...       trimmed, case-insensitive token
func ParseActuator(payload []byte) (bool, error) {
	for _, p := range actuatorParsers {
		on, err := p.parse(payload)
		if errors.Is(err, errNoMatch) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%s actuator payload: %w", p.name, err)
		}
		return on, nil
	}
	return false, ErrUnrecognisedPayload
}

func parseSensorJSON(payload []byte) (Patch, error) {
	fields, ok := decodeObject(payload)
	if !ok {
		return Patch{}, errNoMatch
	}

	var patch Patch
	for key, dst := range map[string]**float64{
		keyTemperature: &patch.Temperature,
		keyHumidity:    &patch.Humidity,
	} {
		raw, present := fields[key]
		if !present {
			continue
		}
		v, err := jsonNumber(raw)
		if err != nil {
			return Patch{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = &v
	}

	if patch.IsEmpty() {
		return Patch{}, errNoMatch
	}
	return patch, nil
}

func parseSensorCSV(payload []byte) (Patch, error) {
	fields := strings.Split(strings.TrimSpace(string(payload)), ",")
	if len(fields) < 2 {
		return Patch{}, errNoMatch
	}

	temperature, err := parseFinite(fields[0])
	if err != nil {
		return Patch{}, noMatchUnlessNonFinite(err)
	}
	humidity, err := parseFinite(fields[1])
	if err != nil {
		return Patch{}, noMatchUnlessNonFinite(err)
	}

	return Patch{Temperature: &temperature, Humidity: &humidity}, nil
}

func parseActuatorJSON(payload []byte) (bool, error) {
	fields, ok := decodeObject(payload)
	if !ok {
		return false, errNoMatch
	}

	raw, present := fields[keyActuator]
	if !present {
		raw, present = fields[keyLED]
	}
	if !present {
		return false, errNoMatch
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, errNoMatch
	}

	switch val := v.(type) {
	case bool:
		return val, nil
	case float64:
		return val != 0, nil
	case string:
		return parseActuatorToken([]byte(val))
	default:
		return false, errNoMatch
	}
}

func parseActuatorToken(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	default:
		return false, errNoMatch
	}
}

// decodeObject decodes payload as a JSON object, reporting false for
// anything else (arrays, scalars, invalid JSON).
func decodeObject(payload []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// jsonNumber accepts a JSON number or a string holding one. null is
// rejected: Unmarshal would otherwise leave it as zero.
func jsonNumber(raw json.RawMessage) (float64, error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return 0, fmt.Errorf("%w: null value", ErrUnrecognisedPayload)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: not a number: %s", ErrUnrecognisedPayload, raw)
	}
	return parseFinite(s)
}

// parseFinite parses a trimmed decimal, rejecting NaN and ±Inf.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnrecognisedPayload, s)
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("%w: %q", ErrNonFinite, s)
	}
	return v, nil
}

func noMatchUnlessNonFinite(err error) error {
	if errors.Is(err, ErrNonFinite) {
		return err
	}
	return errNoMatch
}
