package manager

import (
	"strings"
	"sync"

	"ulogme/config"
)

// Other est la catégorie des fenêtres qu'aucune règle ne reconnaît.
const Other = "Other"

// Structure pour gérer les règles de catégories en mémoire
type CategoryManager struct {
	rules   []config.CategoryRule
	hacking map[string]struct{} // map pour des lookups O(1)
	mutex   sync.RWMutex
}

// Créer un nouveau gestionnaire de catégories
func NewCategoryManager(rules []config.CategoryRule, hacking []string) *CategoryManager {
	cm := &CategoryManager{}
	cm.SetRules(rules, hacking)
	return cm
}

// Remplacer les règles (copie, l'appelant garde les siennes)
func (cm *CategoryManager) SetRules(rules []config.CategoryRule, hacking []string) {
	newRules := make([]config.CategoryRule, len(rules))
	copy(newRules, rules)

	newHacking := make(map[string]struct{}, len(hacking))
	for _, name := range hacking {
		newHacking[strings.ToLower(name)] = struct{}{}
	}

	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.rules = newRules
	cm.hacking = newHacking
}

// Categorize returns the category of the first rule matching
// "app :: title" (or the app alone without a title), Other otherwise.
func (cm *CategoryManager) Categorize(app string, title *string) string {
	text := app
	if title != nil && *title != "" {
		text = app + " :: " + *title
	}

	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, rule := range cm.rules {
		if rule.Pattern.MatchString(text) {
			return rule.Category
		}
	}
	return Other
}

// Vérifier si une catégorie compte comme du "hacking"
func (cm *CategoryManager) IsHacking(category string) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	_, ok := cm.hacking[strings.ToLower(category)]
	return ok
}
