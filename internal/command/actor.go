package command

import (
	"strings"

	"github.com/google/uuid"
)

// Kind identifies the runtime variant of an actor.
type Kind int

const (
	KindGeneric Kind = iota
	KindPlayer
	KindConsole
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindConsole:
		return "console"
	default:
		return "generic"
	}
}

// ParseKind maps "player", "console" and "generic" to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player":
		return KindPlayer, true
	case "console":
		return KindConsole, true
	case "generic", "":
		return KindGeneric, true
	}
	return KindGeneric, false
}

// Capabilities is the capability set of an actor within an invocation.
// OverridePermission is granted by the service, not by the actor variant.
type Capabilities struct {
	Identity           bool
	Messages           bool
	OverridePermission bool
}

// Location is where a player-like actor currently is.
type Location struct {
	World   string
	X, Y, Z float64
}

// Channel delivers rendered text to an actor.
type Channel interface {
	Send(text string)
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(text string)

func (f ChannelFunc) Send(text string) { f(text) }

// Actor is the entity invoking a command. Construct it with NewPlayer,
// NewConsole or NewGeneric.
type Actor struct {
	kind     Kind
	id       uuid.UUID
	name     string
	locale   string
	location *Location
	channel  Channel
}

var actorNamespace = uuid.MustParse("5b3e8d0c-6c52-4f57-9b7f-4a1c2e0f9d11")

// PlayerID returns the stable identity derived for a player name.
func PlayerID(name string) uuid.UUID {
	return uuid.NewSHA1(actorNamespace, []byte("player:"+strings.ToLower(name)))
}

// NewPlayer returns an identity-bearing actor with a location and message channel.
func NewPlayer(name, locale string, loc *Location, ch Channel) *Actor {
	return &Actor{
		kind:     KindPlayer,
		id:       PlayerID(name),
		name:     name,
		locale:   locale,
		location: loc,
		channel:  ch,
	}
}

// NewConsole returns the console actor.
func NewConsole(locale string, ch Channel) *Actor {
	return &Actor{kind: KindConsole, name: "console", locale: locale, channel: ch}
}

// NewGeneric returns an actor with no identity, e.g. an automation hook.
func NewGeneric(name, locale string, ch Channel) *Actor {
	return &Actor{kind: KindGeneric, name: name, locale: locale, channel: ch}
}

func (a *Actor) Kind() Kind          { return a.kind }
func (a *Actor) Name() string        { return a.name }
func (a *Actor) Locale() string      { return a.locale }
func (a *Actor) Location() *Location { return a.location }

// ID returns the actor's identity. Only player actors carry one.
func (a *Actor) ID() (uuid.UUID, bool) {
	if a.kind != KindPlayer {
		return uuid.Nil, false
	}
	return a.id, true
}

// Key is a stable string used to key per-actor state such as cooldowns.
func (a *Actor) Key() string {
	if id, ok := a.ID(); ok {
		return id.String()
	}
	return a.kind.String() + ":" + a.name
}

// Capabilities reports what this actor variant can do on its own.
// OverridePermission is always false here; see Context.Capabilities.
func (a *Actor) Capabilities() Capabilities {
	return Capabilities{Identity: a.kind == KindPlayer, Messages: a.channel != nil}
}

// Send delivers text to the actor. Actors without a channel drop it.
func (a *Actor) Send(text string) {
	if a.channel == nil || text == "" {
		return
	}
	a.channel.Send(text)
}
