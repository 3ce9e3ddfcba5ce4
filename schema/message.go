package schema

import (
	"strings"
)

const (
	MsgTypeMsg = "MSG"
	MsgTypeEnd = "END"
)

const (
	SenderUser = "User"
)

type Message struct {
	Type     string `json:"cate"`
	Thought  string `json:"thought"`
	Content  string `json:"content"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	// Stage names the crew stage that produced the message.
	Stage string `json:"stage,omitempty"`
	Token int    `json:"token"`
	Log   string `json:"-"`
}

func NewUserMessage(receiver, content string) Message {
	return Message{
		Type:     MsgTypeMsg,
		Sender:   SenderUser,
		Receiver: receiver,
		Content:  content,
	}
}

func (m *Message) IsEnd() bool {
	return strings.EqualFold(m.Type, MsgTypeEnd)
}

func (m *Message) IsMsg() bool {
	return strings.EqualFold(m.Type, MsgTypeMsg)
}

// Receivers splits a comma separated receiver list.
func (m *Message) Receivers() []string {
	if m.Receiver == "" {
		return nil
	}
	parts := strings.Split(strings.Trim(m.Receiver, "[]"), ",")
	receivers := make([]string, 0, len(parts))
	for _, part := range parts {
		if cleaned := strings.Trim(strings.TrimSpace(part), "\"'"); cleaned != "" {
			receivers = append(receivers, cleaned)
		}
	}
	return receivers
}
