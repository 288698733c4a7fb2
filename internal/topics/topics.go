// Package topics knows the MQTT topic layout shared with the field modules:
// {prefix}/{module code}/{kind}.
package topics

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the last segment of a topic.
type Kind string

const (
	KindTags   Kind = "TAGS"
	KindLWT    Kind = "LWT"
	KindOnline Kind = "ONLINE"
	KindStatus Kind = "STATUS"
	KindUsers  Kind = "USERS"
)

// ErrUnknownTopic is returned for topics outside the inbound layout.
var ErrUnknownTopic = errors.New("unknown topic")

// Inbound reports whether k is a kind the service subscribes to.
func (k Kind) Inbound() bool {
	switch k {
	case KindTags, KindLWT, KindOnline:
		return true
	}
	return false
}

// Heartbeat reports whether k carries a connectivity signal.
func (k Kind) Heartbeat() bool {
	return k == KindLWT || k == KindOnline
}

// Layout builds and parses topics under one prefix.
type Layout struct {
	prefix string
}

// New returns the layout for prefix. Surrounding slashes are ignored.
func New(prefix string) Layout {
	return Layout{prefix: strings.Trim(prefix, "/")}
}

// Prefix returns the normalized prefix.
func (l Layout) Prefix() string {
	return l.prefix
}

// Subscriptions lists the wildcard filters for every inbound kind.
func (l Layout) Subscriptions() []string {
	return []string{
		l.topic("+", KindTags),
		l.topic("+", KindLWT),
		l.topic("+", KindOnline),
	}
}

// Status is the topic the module listens on for its debounced status.
func (l Layout) Status(moduleCode string) string {
	return l.topic(moduleCode, KindStatus)
}

// Users is the topic carrying the per-event tag listing.
func (l Layout) Users(moduleCode string) string {
	return l.topic(moduleCode, KindUsers)
}

// Topic builds {prefix}/{moduleCode}/{kind}.
func (l Layout) Topic(moduleCode string, kind Kind) string {
	return l.topic(moduleCode, kind)
}

func (l Layout) topic(moduleCode string, kind Kind) string {
	return l.prefix + "/" + moduleCode + "/" + string(kind)
}

// Parse splits an inbound topic into its module code and kind.
func (l Layout) Parse(topic string) (string, Kind, error) {
	rest, ok := strings.CutPrefix(topic, l.prefix+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is outside prefix %q", ErrUnknownTopic, topic, l.prefix)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	kind := Kind(parts[1])
	if !kind.Inbound() {
		return "", "", fmt.Errorf("%w: unsupported kind %q", ErrUnknownTopic, parts[1])
	}
	return parts[0], kind, nil
}
