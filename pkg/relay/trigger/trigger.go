// Copyright 2024-2026 Aiku AI

// Package trigger maps raw bot message text to relay triggers.
package trigger

import (
	"strings"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

// Kind identifies what the user asked for.
type Kind int

const (
	None Kind = iota
	Start
	Help
	Authenticate
	PromptAdd
	PromptRemove
	ListChannels
	Subscribe
	Unsubscribe
	// MissingContext is a bare "@channel" that does not answer a prompt.
	MissingContext
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Help:
		return "help"
	case Authenticate:
		return "authenticate"
	case PromptAdd:
		return "prompt_add"
	case PromptRemove:
		return "prompt_remove"
	case ListChannels:
		return "list_channels"
	case Subscribe:
		return "subscribe"
	case Unsubscribe:
		return "unsubscribe"
	case MissingContext:
		return "missing_context"
	default:
		return "none"
	}
}

// Trigger is a parsed user action. Channel is set for Subscribe and
// Unsubscribe and holds the raw argument.
type Trigger struct {
	Kind    Kind
	Channel string
}

// Parser recognizes keyboard buttons and prompts in every supported
// language, plus slash commands.
type Parser struct {
	buttons       map[string]Kind
	addPrompts    map[string]struct{}
	removePrompts map[string]struct{}
}

// NewParser creates a parser for the given button labels and reply tables.
func NewParser(buttons []relay.Buttons, messages []*relay.Messages) *Parser {
	p := &Parser{
		buttons:       make(map[string]Kind),
		addPrompts:    make(map[string]struct{}),
		removePrompts: make(map[string]struct{}),
	}
	for _, b := range buttons {
		p.buttons[b.Authenticate] = Authenticate
		p.buttons[b.AddChannel] = PromptAdd
		p.buttons[b.ListChannels] = ListChannels
		p.buttons[b.Unsubscribe] = PromptRemove
	}
	for _, m := range messages {
		p.addPrompts[m.PromptAdd] = struct{}{}
		p.removePrompts[m.PromptRemove] = struct{}{}
	}
	return p
}

// Default returns a parser for every built-in language.
func Default() *Parser {
	return NewParser(relay.AllButtons(), relay.AllMessages())
}

// Parse interprets text. replyTo is the text of the message being replied
// to, or empty when there is none.
func (p *Parser) Parse(text, replyTo string) Trigger {
	text = strings.TrimSpace(text)
	if text == "" {
		return Trigger{}
	}
	if kind, ok := p.buttons[text]; ok {
		return Trigger{Kind: kind}
	}
	if text[0] == '/' {
		return parseCommand(text)
	}
	if text[0] == '@' {
		channel := firstField(text)
		replyTo = strings.TrimSpace(replyTo)
		if _, ok := p.addPrompts[replyTo]; ok {
			return Trigger{Kind: Subscribe, Channel: channel}
		}
		if _, ok := p.removePrompts[replyTo]; ok {
			return Trigger{Kind: Unsubscribe, Channel: channel}
		}
		return Trigger{Kind: MissingContext, Channel: channel}
	}
	return Trigger{}
}

func parseCommand(text string) Trigger {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch cmd {
	case "/start":
		return Trigger{Kind: Start}
	case "/help":
		return Trigger{Kind: Help}
	case "/auth", "/login":
		return Trigger{Kind: Authenticate}
	case "/list", "/channels":
		return Trigger{Kind: ListChannels}
	case "/add", "/subscribe":
		if arg == "" {
			return Trigger{Kind: PromptAdd}
		}
		return Trigger{Kind: Subscribe, Channel: arg}
	case "/remove", "/unsubscribe":
		if arg == "" {
			return Trigger{Kind: PromptRemove}
		}
		return Trigger{Kind: Unsubscribe, Channel: arg}
	}
	return Trigger{}
}

func firstField(text string) string {
	if fields := strings.Fields(text); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
