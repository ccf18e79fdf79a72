package mqtt

import (
	"fmt"
	"strings"
)

// Topic limits from the MQTT 3.1.1 specification.
const (
	// maxTopicLength is the largest UTF-8 encoded topic a broker accepts.
	maxTopicLength = 65535

	// maxPayloadSize caps publish payloads (1MB) to stay below typical broker limits.
	maxPayloadSize = 1 << 20

	wildcardSingle = "+"
	wildcardMulti  = "#"
	levelSeparator = "/"
)

// ValidatePublishTopic checks a topic name used for publishing.
//
// Publish topics must be non-empty, must not contain wildcards and must not
// contain the NUL character.
func ValidatePublishTopic(topic string) error {
	if err := validateCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, wildcardSingle+wildcardMulti) {
		return fmt.Errorf("%w: wildcards are not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks a topic filter used for subscribing.
//
// Filters may use "+" as a whole level and "#" as the whole last level:
//
//	sensors/+/temperature   valid
//	sensors/#               valid
//	sensors/temp#           invalid
//	sensors/#/temperature   invalid
func ValidateFilter(filter string) error {
	if err := validateCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, levelSeparator)
	for i, level := range levels {
		if strings.Contains(level, wildcardMulti) {
			if level != wildcardMulti || i != len(levels)-1 {
				return fmt.Errorf("%w: %q must be the whole last level in %q", ErrInvalidTopic, wildcardMulti, filter)
			}
		}
		if strings.Contains(level, wildcardSingle) && level != wildcardSingle {
			return fmt.Errorf("%w: %q must occupy a whole level in %q", ErrInvalidTopic, wildcardSingle, filter)
		}
	}
	return nil
}

// validateCommon applies the rules shared by topic names and filters.
func validateCommon(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic length %d exceeds %d bytes", ErrInvalidTopic, len(topic), maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}
