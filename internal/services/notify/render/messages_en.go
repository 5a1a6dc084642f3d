package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notify.generic.subject", defaultGenericSubject)
	message.SetString(lang, "notify.generic.body", defaultGenericBody)
	message.SetString(lang, "notify.record.generic", defaultRecordName)
	message.SetString(lang, "notify.election.generic", defaultElectionName)
	message.SetString(lang, "notify.signing_link.subject", "Signature requested: %s")
	message.SetString(lang, "notify.signing_link.body", "Your signature is required on %s. Open the link to review and sign: %s")
	message.SetString(lang, "notify.ballot_invite.subject", "Your ballot: %s")
	message.SetString(lang, "notify.ballot_invite.body", "Voting is open for %s. Cast your ballot by opening this link: %s")
}
