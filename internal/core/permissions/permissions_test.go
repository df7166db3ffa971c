package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func granted(keys ...string) func(string) bool {
	set := map[string]bool{}
	for _, k := range keys {
		set[k] = true
	}
	return func(k string) bool { return set[k] }
}

func TestBuildPrefixesExceptGlobal(t *testing.T) {
	p := Build(Of("get", "@admin", []string{"update", "updateMySelf"}), "user.user")

	assert.Equal(t, []string{"user.user.get", "@admin"}, p.Required)
	assert.Equal(t, [][]string{{"user.user.update", "user.user.updateMySelf"}}, p.Optional)
	assert.Equal(t, []string{"@admin", "user.user.get", "user.user.update", "user.user.updateMySelf"}, p.Keys())
}

func TestCheckRequired(t *testing.T) {
	p := Build(Of("update", "create"), "app.api-key")

	assert.Empty(t, p.Check(granted("app.api-key.update", "app.api-key.create")))
	assert.Equal(t, []string{"app.api-key.create"}, p.Check(granted("app.api-key.update")))
}

func TestCheckOptionalGroups(t *testing.T) {
	p := Build(Of([]string{"update", "updateMySelf"}), "user.user")

	assert.Empty(t, p.Check(granted("user.user.updateMySelf")))
	assert.Equal(t, []string{"user.user.update | user.user.updateMySelf"}, p.Check(granted()))
}

func TestEmptyGroupIsSatisfied(t *testing.T) {
	p := Build(Of([]string{}), "x")
	assert.Empty(t, p.Check(granted()))
}

func TestOfRejectsOtherTypes(t *testing.T) {
	assert.Panics(t, func() { Of(1) })
}
