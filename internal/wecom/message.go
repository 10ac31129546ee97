package wecom

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Message kinds the platform pushes. Only text is processed; everything
// else passes through unprocessed.
const (
	MsgTypeText = "text"
)

// callbackBody is the outer XML the platform POSTs to the callback URL.
// Only the Encrypt element matters for signature verification and decryption.
type callbackBody struct {
	XMLName xml.Name `xml:"xml"`
	Encrypt string   `xml:"Encrypt"`
}

// ParseCallbackBody extracts the encrypted payload from a callback POST body.
func ParseCallbackBody(data []byte) (string, error) {
	var body callbackBody
	if err := xml.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("parse callback body: %w", err)
	}
	if body.Encrypt == "" {
		return "", fmt.Errorf("callback body missing Encrypt element")
	}
	return body.Encrypt, nil
}

// InboundMessage is a decrypted platform message.
type InboundMessage struct {
	XMLName    xml.Name `xml:"xml"`
	ToUser     string   `xml:"ToUserName"`
	FromUser   string   `xml:"FromUserName"`
	CreateTime int64    `xml:"CreateTime"`
	MsgType    string   `xml:"MsgType"`
	Content    string   `xml:"Content"`
	MsgID      string   `xml:"MsgId"`
	AgentID    string   `xml:"AgentID"`
}

// ParseMessage parses the decrypted XML of an inbound message.
func ParseMessage(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := xml.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse message xml: %w", err)
	}
	return &msg, nil
}

// ReceivedAt returns the platform timestamp of the message, falling back to
// now when the field is absent.
func (m *InboundMessage) ReceivedAt() time.Time {
	if m.CreateTime > 0 {
		return time.Unix(m.CreateTime, 0)
	}
	return time.Now()
}
