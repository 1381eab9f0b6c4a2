package mqtt

import (
	"fmt"
	"strings"
)

// Topic levels and wildcards per the MQTT 3.1.1 specification.
const (
	levelSeparator  = "/"
	singleLevelWild = "+"
	multiLevelWild  = "#"
)

// ValidatePublishTopic checks that topic is usable as a publish destination:
// non-empty and free of wildcards.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty publish topic", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, singleLevelWild+multiLevelWild) {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks that filter is a well-formed subscription filter.
//
// '+' must occupy a whole level; '#' must occupy the whole last level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty filter", ErrInvalidTopic)
	}

	levels := strings.Split(filter, levelSeparator)
	for i, level := range levels {
		if strings.Contains(level, multiLevelWild) && (level != multiLevelWild || i != len(levels)-1) {
			return fmt.Errorf("%w: '#' must be the whole last level in %q", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, singleLevelWild) && level != singleLevelWild {
			return fmt.Errorf("%w: '+' must be a whole level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// MatchTopic reports whether a concrete topic matches a subscription filter.
//
// Examples:
//
//	MatchTopic("sensors/+/dht", "sensors/kitchen/dht") // true
//	MatchTopic("sensors/#", "sensors/led/state")       // true
//	MatchTopic("sensors/dht", "sensors/dht/raw")        // false
func MatchTopic(filter, topic string) bool {
	if filter == topic {
		return true
	}

	fl := strings.Split(filter, levelSeparator)
	tl := strings.Split(topic, levelSeparator)

	for i, f := range fl {
		if f == multiLevelWild {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if f != singleLevelWild && f != tl[i] {
			return false
		}
	}

	return len(fl) == len(tl)
}
