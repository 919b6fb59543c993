package landing

import (
	"golang.org/x/text/language"
)

type feature struct {
	Title string
	Body  string
}

type copyText struct {
	Title       string
	Headline    string
	Tagline     string
	Features    []feature
	CTA         string
	DownloadURL string
	Privacy     string
	Terms       string
	PrivacyBody string
	TermsBody   string
}

// The first tag is the fallback.
var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
}

var matcher = language.NewMatcher(supported)

var texts = map[string]copyText{
	"en": {
		Title:    "Spark",
		Headline: "Meet people who get you",
		Tagline:  "Real profiles, verified members and matches that make sense.",
		Features: []feature{
			{"Verified profiles", "Every member confirms their identity before they can chat."},
			{"Smart matching", "Suggestions based on what you care about, not just distance."},
			{"Safe by default", "Report and block in one tap. Our moderators review every report."},
		},
		CTA:         "Get the app",
		Privacy:     "Privacy",
		Terms:       "Terms",
		PrivacyBody: "We keep only what the app needs to find you matches. We never sell your data, and you can delete your account and everything in it at any time.",
		TermsBody:   "You must be 18 or older to use Spark. Be respectful: harassment, fake profiles and spam lead to removal.",
	},
	"es": {
		Title:    "Spark",
		Headline: "Conoce a gente que te entiende",
		Tagline:  "Perfiles reales, miembros verificados y coincidencias con sentido.",
		Features: []feature{
			{"Perfiles verificados", "Cada miembro confirma su identidad antes de chatear."},
			{"Coincidencias inteligentes", "Sugerencias según lo que te importa, no solo la distancia."},
			{"Seguro desde el inicio", "Denuncia y bloquea con un toque. Nuestro equipo revisa cada denuncia."},
		},
		CTA:         "Descarga la app",
		Privacy:     "Privacidad",
		Terms:       "Términos",
		PrivacyBody: "Solo guardamos lo que la app necesita para encontrar coincidencias. Nunca vendemos tus datos y puedes borrar tu cuenta cuando quieras.",
		TermsBody:   "Debes tener 18 años o más para usar Spark. Sé respetuoso: el acoso, los perfiles falsos y el spam conllevan la expulsión.",
	},
	"fr": {
		Title:    "Spark",
		Headline: "Rencontrez des gens qui vous comprennent",
		Tagline:  "De vrais profils, des membres vérifiés et des affinités qui ont du sens.",
		Features: []feature{
			{"Profils vérifiés", "Chaque membre confirme son identité avant de discuter."},
			{"Affinités intelligentes", "Des suggestions selon vos priorités, pas seulement la distance."},
			{"Sécurité par défaut", "Signalez et bloquez en un geste. Nos modérateurs examinent chaque signalement."},
		},
		CTA:         "Télécharger l'app",
		Privacy:     "Confidentialité",
		Terms:       "Conditions",
		PrivacyBody: "Nous ne conservons que ce dont l'app a besoin pour vous proposer des affinités. Nous ne vendons jamais vos données et vous pouvez supprimer votre compte à tout moment.",
		TermsBody:   "Vous devez avoir 18 ans ou plus pour utiliser Spark. Restez respectueux : harcèlement, faux profils et spam entraînent une exclusion.",
	},
	"de": {
		Title:    "Spark",
		Headline: "Lerne Menschen kennen, die dich verstehen",
		Tagline:  "Echte Profile, verifizierte Mitglieder und Matches, die passen.",
		Features: []feature{
			{"Verifizierte Profile", "Jedes Mitglied bestätigt seine Identität, bevor es chatten kann."},
			{"Kluges Matching", "Vorschläge nach dem, was dir wichtig ist, nicht nur nach Entfernung."},
			{"Sicher von Anfang an", "Melden und blockieren mit einem Tipp. Unser Team prüft jede Meldung."},
		},
		CTA:         "App holen",
		Privacy:     "Datenschutz",
		Terms:       "AGB",
		PrivacyBody: "Wir speichern nur, was die App für passende Vorschläge braucht. Wir verkaufen deine Daten nie, und du kannst dein Konto jederzeit löschen.",
		TermsBody:   "Du musst mindestens 18 Jahre alt sein, um Spark zu nutzen. Sei respektvoll: Belästigung, Fake-Profile und Spam führen zum Ausschluss.",
	},
}

// negotiate returns the first candidate that maps onto a supported
// language. Candidates may be plain tags or Accept-Language headers.
func negotiate(candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(c)
		if err != nil || len(tags) == 0 {
			continue
		}
		tag, _, conf := matcher.Match(tags...)
		if conf == language.No {
			continue
		}
		base, _ := tag.Base()
		return base.String()
	}

	base, _ := supported[0].Base()
	return base.String()
}
