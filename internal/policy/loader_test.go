package policy

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicies(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func TestLoader_LoadAll(t *testing.T) {
	dir := GetPoliciesPath("/home/u/.planwing")
	fs := writePolicies(t, map[string]string{
		dir + "/roles.rego":       DefaultRolePolicy,
		dir + "/team/freeze.rego": "package planwing.policy\n",
		dir + "/roles_test.rego":  DefaultRolePolicyTest,
		dir + "/README.md":        "# Policies",
		dir + "/lib/helpers.rego": "package planwing.lib\n",
	})
	loader := NewLoader(fs, dir)

	policies, err := loader.LoadAll()
	require.NoError(t, err)
	require.Len(t, policies, 3)
	assert.Equal(t, []string{"helpers", "roles", "freeze"}, []string{policies[0].Name, policies[1].Name, policies[2].Name})
	assert.Equal(t, "planwing.lib", policies[0].Package)
	assert.Equal(t, "planwing.policy", policies[1].Package)
	assert.Equal(t, DefaultRolePolicy, policies[1].Content)

	files, err := loader.Scan()
	require.NoError(t, err)
	require.Len(t, files, 4)
	var tests []string
	for _, f := range files {
		if f.Test {
			tests = append(tests, f.Name)
			assert.Equal(t, "planwing.policy_test", f.Package)
		}
	}
	assert.Equal(t, []string{"roles_test"}, tests)
}

func TestLoader_ParseErrorNamesFile(t *testing.T) {
	fs := writePolicies(t, map[string]string{
		"/p/roles.rego":  DefaultRolePolicy,
		"/p/broken.rego": "package planwing.policy\n deny contains",
	})

	_, err := NewLoader(fs, "/p").LoadAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/p/broken.rego")
}

func TestLoader_MissingDirectory(t *testing.T) {
	policies, err := NewLoader(afero.NewMemMapFs(), "/does/not/exist").LoadAll()
	require.NoError(t, err)
	assert.Empty(t, policies)
}
