package manager_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"ulogme/config"
	"ulogme/entity"
	"ulogme/manager"
)

func TestCategorize(t *testing.T) {
	t.Parallel()

	cm := manager.NewCategoryManager([]config.CategoryRule{
		{Pattern: regexp.MustCompile(`(?i)github\.com`), Category: "Coding"},
		{Pattern: regexp.MustCompile(`(?i)^(iterm2|terminal)`), Category: "Terminal"},
		{Pattern: regexp.MustCompile(`(?i)chrome`), Category: "Browsing"},
	}, []string{"Coding", "terminal"})

	assert.Equal(t, "Coding", cm.Categorize("Google Chrome", entity.StrPtr("https://github.com/x")))
	assert.Equal(t, "Browsing", cm.Categorize("Google Chrome", entity.StrPtr("https://news.ycombinator.com")))
	assert.Equal(t, "Terminal", cm.Categorize("iTerm2", nil))
	assert.Equal(t, manager.Other, cm.Categorize("Slack", entity.StrPtr("#general")))

	assert.True(t, cm.IsHacking("Coding"))
	assert.True(t, cm.IsHacking("Terminal"))
	assert.False(t, cm.IsHacking("Browsing"))
}

func TestSetRulesReplaces(t *testing.T) {
	t.Parallel()

	cm := manager.NewCategoryManager(nil, nil)
	assert.Equal(t, manager.Other, cm.Categorize("Slack", nil))
	assert.False(t, cm.IsHacking("Coding"))

	cm.SetRules([]config.CategoryRule{
		{Pattern: regexp.MustCompile(`(?i)slack`), Category: "Chat"},
	}, []string{"Chat"})
	assert.Equal(t, "Chat", cm.Categorize("Slack", nil))
	assert.True(t, cm.IsHacking("chat"))
}
