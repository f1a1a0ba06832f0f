package engine

import tele "gopkg.in/telebot.v4"

// Kind selects what the transport should do with an Event.
type Kind int

const (
	// KindSend delivers a message to the chat.
	KindSend Kind = iota
	// KindRetractTracked deletes the previously tracked confirmation.
	KindRetractTracked
	// KindRetractSource deletes the message the user interacted with,
	// typically a number picker that just got used.
	KindRetractSource
)

// Event is one presentation step produced by the engine. The transport
// applies events in order; retractions are best-effort.
type Event struct {
	Kind     Kind
	Text     string
	Markup   *tele.ReplyMarkup
	Markdown bool
	// Track records the sent message ID so a later event can retract it.
	Track bool
}

func send(text string) Event {
	return Event{Kind: KindSend, Text: text}
}

func sendKB(text string, markup *tele.ReplyMarkup) Event {
	return Event{Kind: KindSend, Text: text, Markup: markup}
}

func sendMD(text string, markup *tele.ReplyMarkup) Event {
	return Event{Kind: KindSend, Text: text, Markup: markup, Markdown: true}
}
