// Package render produces localized delivery copy for signing links and
// ballot invitations.
package render

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// TopicSigningLink is the template id for remote signing link deliveries.
	TopicSigningLink = "signing.link.issued"
	// TopicBallotInvite is the template id for election ballot invitations.
	TopicBallotInvite = "election.ballot.invited"

	defaultGenericSubject = "SHEQDesk notification"
	defaultGenericBody    = "You have a new notification from SHEQDesk."
	defaultRecordName     = "a safety record"
	defaultElectionName   = "a workplace election"
)

// Input is one delivery render request.
type Input struct {
	Topic       string
	PayloadJSON string
	Link        string
}

// Output is localized copy for one outbound delivery.
type Output struct {
	Subject  string
	BodyText string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Printer returns a localizer for the given locale tag, falling back to
// English for unknown locales.
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	switch tag {
	case language.Afrikaans:
		return message.NewPrinter(language.Afrikaans)
	default:
		return message.NewPrinter(language.English)
	}
}

type signingLinkPayload struct {
	RecordKind string `json:"record_kind"`
	Role       string `json:"role"`
}

type ballotInvitePayload struct {
	ElectionTitle string `json:"election_title"`
}

// Render returns localized copy for one outbound delivery.
func Render(loc Localizer, input Input) Output {
	switch normalizeToken(input.Topic) {
	case TopicSigningLink:
		return renderSigningLink(loc, input)
	case TopicBallotInvite:
		return renderBallotInvite(loc, input)
	default:
		return genericOutput(loc)
	}
}

func renderSigningLink(loc Localizer, input Input) Output {
	payload := signingLinkPayload{}
	if raw := strings.TrimSpace(input.PayloadJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return genericOutput(loc)
		}
	}

	name := strings.TrimSpace(payload.RecordKind)
	if name == "" {
		name = localizeWithFallback(loc, "notify.record.generic", defaultRecordName)
	}

	return Output{
		Subject:  localize(loc, "notify.signing_link.subject", name),
		BodyText: localize(loc, "notify.signing_link.body", name, input.Link),
	}
}

func renderBallotInvite(loc Localizer, input Input) Output {
	payload := ballotInvitePayload{}
	if raw := strings.TrimSpace(input.PayloadJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return genericOutput(loc)
		}
	}

	title := strings.TrimSpace(payload.ElectionTitle)
	if title == "" {
		title = localizeWithFallback(loc, "notify.election.generic", defaultElectionName)
	}

	return Output{
		Subject:  localize(loc, "notify.ballot_invite.subject", title),
		BodyText: localize(loc, "notify.ballot_invite.body", title, input.Link),
	}
}

func genericOutput(loc Localizer) Output {
	return Output{
		Subject:  localizeWithFallback(loc, "notify.generic.subject", defaultGenericSubject),
		BodyText: localizeWithFallback(loc, "notify.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}

func normalizeToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
