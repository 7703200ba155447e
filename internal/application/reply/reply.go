// Package reply carries transport-agnostic outgoing messages. Application
// services build them; the telegram adapter renders them.
package reply

// Button is one inline keyboard button. Either Data (callback) or URL is set.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Message is one outgoing message with an optional inline keyboard.
type Message struct {
	ChatID   int64
	Text     string
	Keyboard [][]Button
}

func Text(chatID int64, text string) Message {
	return Message{ChatID: chatID, Text: text}
}
