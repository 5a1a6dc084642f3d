package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.Afrikaans

	message.SetString(lang, "notify.generic.subject", "SHEQDesk kennisgewing")
	message.SetString(lang, "notify.generic.body", "Jy het 'n nuwe kennisgewing van SHEQDesk.")
	message.SetString(lang, "notify.record.generic", "'n veiligheidsrekord")
	message.SetString(lang, "notify.election.generic", "'n werkplekverkiesing")
	message.SetString(lang, "notify.signing_link.subject", "Handtekening versoek: %s")
	message.SetString(lang, "notify.signing_link.body", "Jou handtekening word benodig op %s. Maak die skakel oop om na te gaan en te teken: %s")
	message.SetString(lang, "notify.ballot_invite.subject", "Jou stembrief: %s")
	message.SetString(lang, "notify.ballot_invite.body", "Stemming is oop vir %s. Bring jou stem uit deur hierdie skakel oop te maak: %s")
}
