// Package classifier maps product titles to destination categories.
package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Category identifiers
const (
	Electronique   = "electronique"
	Informatique   = "informatique"
	Electromenager = "electromenager"
	Entretien      = "entretien"
	Cuisine        = "cuisine"
	Beaute         = "beaute"
	Sport          = "sport"
	Jouets         = "jouets"
	Mode           = "mode"
	Bricolage      = "bricolage"

	// Uncategorized is assigned to unmatched titles of profiles that keep them
	Uncategorized = "uncategorized"
)

// Rule maps any of its keywords to a category
type Rule struct {
	Category string   `yaml:"category" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1,dive,required"`
}

// Classifier tests rules in order and returns the first match
type Classifier struct {
	rules []Rule
}

// New creates a classifier over rules. Keywords are folded once so matching is case and
// accent insensitive.
func New(rules []Rule) *Classifier {
	folded := make([]Rule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = Fold(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		folded = append(folded, Rule{Category: r.Category, Keywords: keywords})
	}
	return &Classifier{rules: folded}
}

// NewDefault creates a classifier over DefaultRules
func NewDefault() *Classifier {
	return New(DefaultRules())
}

// Classify returns the category of the first rule with a keyword contained in title.
// ok is false when nothing matches, meaning the listing has no destination.
func (c *Classifier) Classify(title string) (string, bool) {
	folded := Fold(title)
	if folded == "" {
		return "", false
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(folded, k) {
				return r.Category, true
			}
		}
	}
	return "", false
}

// Categories lists the categories in rule order without duplicates
func (c *Classifier) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// Fold lower-cases s, strips diacritics and collapses whitespace
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.Join(strings.Fields(strings.ToLower(result)), " ")
}

// DefaultRules is the built-in rule table. Order matters: "Clavier gaming" belongs to
// informatique even though "gaming" is an electronique keyword, so informatique is tested first.
func DefaultRules() []Rule {
	return []Rule{
		{Category: Electromenager, Keywords: []string{
			"aspirateur", "lave-linge", "lave linge", "lave-vaisselle", "seche-linge",
			"refrigerateur", "frigo", "congelateur", "micro-ondes", "climatiseur",
			"fer a repasser", "centrale vapeur", "robot cuiseur", "friteuse", "airfryer",
		}},
		{Category: Informatique, Keywords: []string{
			"ordinateur", "laptop", "pc portable", "macbook", "ssd", "disque dur",
			"carte graphique", "processeur", "clavier", "souris", "ecran pc", "moniteur",
			"imprimante", "routeur", "cle usb", "carte memoire",
		}},
		{Category: Electronique, Keywords: []string{
			"console", "gaming", "playstation", "xbox", "nintendo", "switch",
			"smartphone", "iphone", "galaxy", "tablette", "ipad", "televiseur",
			"casque", "ecouteurs", "enceinte", "bluetooth", "camera", "appareil photo",
			"montre connectee", "smartwatch", "chargeur", "powerbank", "drone",
		}},
		{Category: Entretien, Keywords: []string{
			"lessive", "nettoyant", "detergent", "eponge", "desinfectant", "liquide vaisselle",
			"adoucissant", "sac poubelle", "essuie-tout", "papier toilette", "balai", "serpillere",
		}},
		{Category: Cuisine, Keywords: []string{
			"poele", "casserole", "cocotte", "couteau", "ustensile", "mixeur", "blender",
			"cafetiere", "machine a cafe", "bouilloire", "grille-pain", "robot patissier",
		}},
		{Category: Beaute, Keywords: []string{
			"parfum", "creme", "shampoing", "maquillage", "rouge a levres", "mascara",
			"seche-cheveux", "lisseur", "rasoir", "tondeuse", "brosse a dents", "serum",
		}},
		{Category: Sport, Keywords: []string{
			"velo", "trottinette", "halteres", "tapis de course", "yoga", "fitness",
			"running", "randonnee", "camping", "ballon",
		}},
		{Category: Jouets, Keywords: []string{
			"lego", "playmobil", "poupee", "peluche", "jeu de societe", "puzzle", "jouet",
			"figurine", "hot wheels",
		}},
		{Category: Mode, Keywords: []string{
			"t-shirt", "chemise", "pantalon", "jean", "robe", "veste", "manteau", "baskets",
			"chaussures", "sac a main", "montre", "lunettes",
		}},
		{Category: Bricolage, Keywords: []string{
			"perceuse", "visseuse", "scie", "ponceuse", "tournevis", "outil", "meuleuse",
			"niveau laser", "etabli",
		}},
	}
}
