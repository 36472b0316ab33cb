// Package i18n provides the portal's UI message catalog. English is the
// default; French is the one extra language the catalog carries.
package i18n

import "strings"

const defaultLang = "en"

var messages = map[string]map[string]string{
	"en": {
		"app.title":            "Purchasing Portal",
		"nav.articles":         "Articles",
		"nav.in_stock":         "In Stock",
		"nav.requests":         "My Purchase Requests",
		"nav.logout":           "Log out",
		"login.title":          "Sign in",
		"login.company":        "Company database",
		"login.username":       "User name",
		"login.password":       "Password",
		"login.submit":         "Sign in",
		"login.failed":         "Login failed",
		"login.required":       "All fields are required",
		"articles.title":       "Available articles",
		"articles.code":        "Item Code",
		"articles.name":        "Item Name",
		"articles.stock":       "In Stock",
		"articles.search":      "Search",
		"articles.page":        "Page",
		"articles.prev":        "Previous",
		"articles.next":        "Next",
		"articles.no_results":  "No results",
		"selection.title":      "Selected",
		"selection.qty":        "Qty",
		"selection.remove_all": "Remove all",
		"selection.submit":     "Create purchase request",
		"selection.created":    "Purchase request created",
		"selection.failed":     "Could not create the purchase request",
		"requests.title":       "My Purchase Requests",
		"requests.doc_num":     "Doc Num",
		"requests.doc_date":    "Doc Date",
		"requests.req_date":    "Required Date",
		"requests.status":      "Status",
		"requests.total":       "Total",
		"requests.lines":       "Items",
		"requests.empty":       "No purchase requests found",
		"logout.failed":        "Logout failed, please try again",
		"fetch.failed":         "Could not load articles",
	},
	"fr": {
		"app.title":            "Portail d'achats",
		"nav.articles":         "Articles",
		"nav.in_stock":         "En stock",
		"nav.requests":         "Mes demandes d'achat",
		"nav.logout":           "Déconnexion",
		"login.title":          "Connexion",
		"login.company":        "Base société",
		"login.username":       "Utilisateur",
		"login.password":       "Mot de passe",
		"login.submit":         "Se connecter",
		"login.failed":         "Échec de la connexion",
		"login.required":       "Tous les champs sont requis",
		"articles.title":       "Articles disponibles",
		"articles.code":        "Code article",
		"articles.name":        "Désignation",
		"articles.stock":       "En stock",
		"articles.search":      "Rechercher",
		"articles.page":        "Page",
		"articles.prev":        "Précédent",
		"articles.next":        "Suivant",
		"articles.no_results":  "Aucun résultat",
		"selection.title":      "Sélection",
		"selection.qty":        "Qté",
		"selection.remove_all": "Tout retirer",
		"selection.submit":     "Créer la demande d'achat",
		"selection.created":    "Demande d'achat créée",
		"selection.failed":     "La demande d'achat n'a pas pu être créée",
		"requests.title":       "Mes demandes d'achat",
		"requests.doc_num":     "N° doc",
		"requests.doc_date":    "Date doc",
		"requests.req_date":    "Date requise",
		"requests.status":      "Statut",
		"requests.total":       "Total",
		"requests.lines":       "Articles",
		"requests.empty":       "Aucune demande d'achat",
		"logout.failed":        "Échec de la déconnexion, réessayez",
		"fetch.failed":         "Impossible de charger les articles",
	},
}

// T translates a message code for the given language. Unknown languages
// fall back to the default language; unknown codes fall back to the code
// itself so missing entries stay visible.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[defaultLang][code]; ok {
		return s
	}
	return code
}

// DetectLanguage picks a supported language from an Accept-Language
// header value, defaulting to English.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		if i := strings.IndexByte(tag, '-'); i > 0 {
			tag = tag[:i]
		}
		if _, ok := messages[tag]; ok {
			return tag
		}
	}
	return defaultLang
}
