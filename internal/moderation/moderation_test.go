package moderation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterDefaultWords(t *testing.T) {
	f := NewFilter(nil, nil)

	require.NoError(t, f.Check("Ada Lovelace", "gloop gloop"))
	require.ErrorIs(t, f.Check("Total RETARD", "hi"), ErrBannedName)
	require.ErrorIs(t, f.Check("Ada", "you retard"), ErrBannedMessage)
}

func TestFilterCustomWords(t *testing.T) {
	f := NewFilter([]string{" Spam ", ""}, nil)
	require.True(t, f.Contains("buy SPAM now"))
	require.False(t, f.Contains("retard"))

	none := NewFilter([]string{}, nil)
	require.False(t, none.Contains("anything"))
}

const shoutRule = `
return {
  check = function(name, message)
    if #message > 3 and message == string.upper(message) then
      return "no shouting"
    end
    if name == "root" then
      return true
    end
  end
}
`

func TestRuleRejects(t *testing.T) {
	rule, err := ParseRule(shoutRule)
	require.NoError(t, err)
	t.Cleanup(rule.Close)

	require.NoError(t, rule.Check("Ada", "hello there"))

	err = rule.Check("Ada", "HELLO THERE")
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "no shouting", rejected.Reason)

	require.Error(t, rule.Check("root", "hi"))
}

func TestRuleGlobalTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
moderation = {}
function moderation.check(name, message)
  if string.find(message, "http", 1, true) then
    return "links are not allowed"
  end
  return false
end
`), 0o644))

	rule, err := LoadRule(path)
	require.NoError(t, err)
	t.Cleanup(rule.Close)

	f := NewFilter(nil, rule)
	require.NoError(t, f.Check("Ada", "plain text"))
	require.Error(t, f.Check("Ada", "see http://example.com"))
}

func TestRuleScriptErrors(t *testing.T) {
	_, err := ParseRule(`return 42`)
	require.Error(t, err)

	_, err = ParseRule(`return { check = "nope" }`)
	require.Error(t, err)

	_, err = ParseRule(`this is not lua`)
	require.Error(t, err)

	rule, err := ParseRule(`return { check = function() error("boom") end }`)
	require.NoError(t, err)
	t.Cleanup(rule.Close)
	err = rule.Check("a", "b")
	require.Error(t, err)
	var rejected *RejectedError
	require.False(t, errors.As(err, &rejected))
}
