package irc

// ServerMessage is the closed set of typed messages produced by Parse. Every
// variant keeps the tokenized line it was built from.
type ServerMessage interface {
	RawMessage() *Message
	Command() string

	serverMessage()
}

type rawLine struct {
	Raw Message `json:"raw"`
}

func (r *rawLine) RawMessage() *Message {
	return &r.Raw
}

func (r *rawLine) Command() string {
	return r.Raw.Command
}

func (*rawLine) serverMessage() {}

func wrap(m *Message) rawLine {
	return rawLine{Raw: *m}
}

// GenericMessage carries any command this package does not model.
type GenericMessage struct {
	rawLine
}

type PingMessage struct {
	rawLine
}

type PongMessage struct {
	rawLine
}

type ReconnectMessage struct {
	rawLine
}

type JoinMessage struct {
	ChannelLogin string `json:"channel_login"`
	UserLogin    string `json:"user_login"`
	rawLine
}

type PartMessage struct {
	ChannelLogin string `json:"channel_login"`
	UserLogin    string `json:"user_login"`
	rawLine
}

// Parse converts a tokenized line into its typed form. Unknown commands never
// fail, they become a *GenericMessage.
func Parse(m *Message) (ServerMessage, error) {
	switch m.Command {
	case "CLEARCHAT":
		return typed(parseClearChat(m))
	case "CLEARMSG":
		return typed(parseClearMsg(m))
	case "GLOBALUSERSTATE":
		return typed(parseGlobalUserState(m))
	case "JOIN":
		return typed(parseJoin(m))
	case "NOTICE":
		return typed(parseNotice(m))
	case "PART":
		return typed(parsePart(m))
	case "PING":
		return &PingMessage{wrap(m)}, nil
	case "PONG":
		return &PongMessage{wrap(m)}, nil
	case "PRIVMSG":
		return typed(parsePrivmsg(m))
	case "RECONNECT":
		return &ReconnectMessage{wrap(m)}, nil
	case "ROOMSTATE":
		return typed(parseRoomState(m))
	case "USERNOTICE":
		return typed(parseUserNotice(m))
	case "USERSTATE":
		return typed(parseUserState(m))
	case "WHISPER":
		return typed(parseWhisper(m))
	default:
		return &GenericMessage{wrap(m)}, nil
	}
}

// ParseLine tokenizes and parses one line.
func ParseLine(line string) (ServerMessage, error) {
	m, err := ParseMessage(line)
	if err != nil {
		return nil, err
	}
	return Parse(m)
}

// typed keeps a nil variant pointer from turning into a non-nil interface.
func typed[T ServerMessage](msg T, err error) (ServerMessage, error) {
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func expect(m *Message, command string) error {
	if m.Command != command {
		return newParseError(MismatchedCommand, m)
	}
	return nil
}

func parseJoin(m *Message) (*JoinMessage, error) {
	if err := expect(m, "JOIN"); err != nil {
		return nil, err
	}

	channel, err := m.channelLogin()
	if err != nil {
		return nil, err
	}
	user, err := m.prefixNick()
	if err != nil {
		return nil, err
	}

	return &JoinMessage{ChannelLogin: channel, UserLogin: user, rawLine: wrap(m)}, nil
}

func parsePart(m *Message) (*PartMessage, error) {
	if err := expect(m, "PART"); err != nil {
		return nil, err
	}

	channel, err := m.channelLogin()
	if err != nil {
		return nil, err
	}
	user, err := m.prefixNick()
	if err != nil {
		return nil, err
	}

	return &PartMessage{ChannelLogin: channel, UserLogin: user, rawLine: wrap(m)}, nil
}
