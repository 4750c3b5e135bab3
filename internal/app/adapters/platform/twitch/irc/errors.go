package irc

import (
	"errors"
	"fmt"
)

type ParseErrorKind int

const (
	MismatchedCommand ParseErrorKind = iota
	MissingTag
	MissingTagValue
	MalformedTagValue
	MissingParameter
	MalformedChannel
	MissingPrefix
	MissingNickname
)

var (
	ErrMismatchedCommand = errors.New("command is not parsed by this constructor")
	ErrMissingTag        = errors.New("missing tag")
	ErrMissingTagValue   = errors.New("missing tag value")
	ErrMalformedTagValue = errors.New("malformed tag value")
	ErrMissingParameter  = errors.New("missing parameter")
	ErrMalformedChannel  = errors.New("malformed channel parameter")
	ErrMissingPrefix     = errors.New("missing prefix")
	ErrMissingNickname   = errors.New("missing nickname in prefix")
)

var kindSentinels = [...]error{
	MismatchedCommand: ErrMismatchedCommand,
	MissingTag:        ErrMissingTag,
	MissingTagValue:   ErrMissingTagValue,
	MalformedTagValue: ErrMalformedTagValue,
	MissingParameter:  ErrMissingParameter,
	MalformedChannel:  ErrMalformedChannel,
	MissingPrefix:     ErrMissingPrefix,
	MissingNickname:   ErrMissingNickname,
}

func (k ParseErrorKind) String() string {
	switch k {
	case MismatchedCommand:
		return "mismatched_command"
	case MissingTag:
		return "missing_tag"
	case MissingTagValue:
		return "missing_tag_value"
	case MalformedTagValue:
		return "malformed_tag_value"
	case MissingParameter:
		return "missing_parameter"
	case MalformedChannel:
		return "malformed_channel"
	case MissingPrefix:
		return "missing_prefix"
	case MissingNickname:
		return "missing_nickname"
	}
	return "unknown"
}

// ParseError reports why a tokenized line could not become a typed message.
// Raw is the offending line. Key is set for tag errors, Value for
// MalformedTagValue and Index for MissingParameter.
type ParseError struct {
	Kind  ParseErrorKind
	Raw   Message
	Key   string
	Value string
	Index int
}

func (e *ParseError) Error() string {
	var detail string
	switch e.Kind {
	case MismatchedCommand:
		detail = "that command's data is not parsed by this constructor"
	case MissingTag:
		detail = fmt.Sprintf("no tag present under key `%s`", e.Key)
	case MissingTagValue:
		detail = fmt.Sprintf("no tag value present under key `%s`", e.Key)
	case MalformedTagValue:
		detail = fmt.Sprintf("malformed tag value for tag `%s`, value was `%s`", e.Key, e.Value)
	case MissingParameter:
		detail = fmt.Sprintf("no parameter found at index %d", e.Index)
	case MalformedChannel:
		detail = "malformed channel parameter (# must be present + something after it)"
	case MissingPrefix:
		detail = "missing prefix altogether"
	case MissingNickname:
		detail = "no nickname found in prefix"
	}

	return fmt.Sprintf("could not parse IRC message %s: %s", e.Raw.String(), detail)
}

func (e *ParseError) Unwrap() error {
	if int(e.Kind) < len(kindSentinels) {
		return kindSentinels[e.Kind]
	}
	return nil
}

func newParseError(kind ParseErrorKind, m *Message) *ParseError {
	return &ParseError{Kind: kind, Raw: *m}
}
