// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package topic implements the GraphBus event router: topic path validation
// and the TopicIndex that maps a published topic to its ordered subscribers.
//
// Topics are slash-delimited hierarchical paths such as "/Hello/MessageGenerated".
// A subscription pattern may end in a single "*" segment, which matches any
// immediate child of the prefix ("/Hello/*" matches "/Hello/X" but neither
// "/Hello" nor "/Hello/X/Y"). Wildcard matching can be disabled for strict
// artifact compatibility.
package topic

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"
)

const (
	// Separator delimits topic segments.
	Separator = "/"
	// Wildcard matches exactly one trailing segment.
	Wildcard = "*"
)

var (
	// ErrInvalidTopic is returned for malformed topic strings or patterns.
	ErrInvalidTopic = errors.New("invalid topic")
	// ErrUnknownTopic is returned by introspection calls for patterns with no subscribers.
	// Publishing to a topic without subscribers is not an error.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrFrozen is returned when subscribing after the index was frozen.
	ErrFrozen = errors.New("topic index is frozen")
	// ErrWildcardDisabled is returned for wildcard patterns when wildcard matching is off.
	ErrWildcardDisabled = errors.New("wildcard subscriptions are disabled")
)

// Validate checks that topic is a well-formed concrete topic path.
func Validate(topic string) error {
	segments, err := split(topic)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if strings.Contains(seg, Wildcard) {
			return fmt.Errorf("%w: %q: wildcard not allowed in a published topic", ErrInvalidTopic, topic)
		}
	}
	return nil
}

// ValidatePattern checks that pattern is a well-formed subscription pattern.
// The only wildcard form accepted is a whole final "*" segment.
func ValidatePattern(pattern string) error {
	segments, err := split(pattern)
	if err != nil {
		return err
	}
	for i, seg := range segments {
		if !strings.Contains(seg, Wildcard) {
			continue
		}
		if seg != Wildcard || i != len(segments)-1 {
			return fmt.Errorf("%w: %q: %q may only appear as the last segment", ErrInvalidTopic, pattern, Wildcard)
		}
	}
	return nil
}

// IsWildcard reports whether pattern ends in a wildcard segment.
func IsWildcard(pattern string) bool {
	return strings.HasSuffix(pattern, Separator+Wildcard)
}

// Parent returns the topic one level up ("/Hello/X" -> "/Hello", "/Hello" -> "/").
func Parent(topic string) string {
	return path.Dir(topic)
}

// Matches reports whether topic is delivered to subscribers of pattern.
func Matches(pattern, topic string) bool {
	return matchesTopicPattern(pattern, topic)
}

// matchesTopicPattern checks if a topic matches a subscription pattern.
// "*" never crosses a separator, so only immediate children match. Segments
// are compared literally; glob characters in a path carry no meaning.
func matchesTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	return IsWildcard(pattern) && Parent(pattern) == Parent(topic)
}

func split(topic string) ([]string, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if !strings.HasPrefix(topic, Separator) {
		return nil, fmt.Errorf("%w: %q must start with %q", ErrInvalidTopic, topic, Separator)
	}
	if topic == Separator {
		return nil, fmt.Errorf("%w: %q has no segments", ErrInvalidTopic, topic)
	}
	if strings.HasSuffix(topic, Separator) {
		return nil, fmt.Errorf("%w: %q has a trailing separator", ErrInvalidTopic, topic)
	}
	if strings.IndexFunc(topic, unicode.IsSpace) >= 0 {
		return nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalidTopic, topic)
	}
	segments := strings.Split(topic[1:], Separator)
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidTopic, topic)
		}
	}
	return segments, nil
}
