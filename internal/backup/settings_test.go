package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var githubLikeSchema = Schema{
	{Key: "token", Label: "Access token", Type: FieldPassword, Required: true},
	{Key: "owner", Label: "Owner", Type: FieldText, Required: true},
	{Key: "baseRepo", Label: "Repository", Type: FieldText, Default: "wp-backups"},
	{Key: "maxBackups", Label: "Max backups", Type: FieldNumber},
	{Key: "compress", Label: "Compress", Type: FieldBoolean},
	{Key: "visibility", Label: "Visibility", Type: FieldSelect, Options: []string{"private", "public"}},
}

func TestSchemaValidate_OK(t *testing.T) {
	err := githubLikeSchema.Validate(map[string]any{
		"token":      "ghp_x",
		"owner":      "acme",
		"maxBackups": 5,
		"compress":   true,
		"visibility": "private",
	})
	require.NoError(t, err)
}

func TestSchemaValidate_MissingRequired(t *testing.T) {
	err := githubLikeSchema.Validate(map[string]any{"owner": "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"token"`)

	// Empty string counts as missing.
	err = githubLikeSchema.Validate(map[string]any{"token": "", "owner": "acme"})
	require.Error(t, err)
}

func TestSchemaValidate_TypeMismatches(t *testing.T) {
	base := map[string]any{"token": "t", "owner": "o"}

	tests := []struct {
		key string
		val any
	}{
		{"owner", 42},
		{"maxBackups", "five"},
		{"compress", "yes"},
		{"visibility", "internal"},
		{"visibility", 1},
	}
	for _, tt := range tests {
		settings := map[string]any{}
		for k, v := range base {
			settings[k] = v
		}
		settings[tt.key] = tt.val
		assert.Error(t, githubLikeSchema.Validate(settings), "key=%s val=%v", tt.key, tt.val)
	}
}

func TestSchemaValidate_NumberKinds(t *testing.T) {
	for _, v := range []any{int(3), int64(3), float64(3)} {
		err := githubLikeSchema.Validate(map[string]any{"token": "t", "owner": "o", "maxBackups": v})
		assert.NoError(t, err)
	}
}

func TestSchemaApplyDefaults(t *testing.T) {
	out := githubLikeSchema.ApplyDefaults(map[string]any{"token": "t", "owner": "o"})

	assert.Equal(t, "wp-backups", out["baseRepo"])
	assert.Equal(t, "t", out["token"])

	// Existing values win over defaults.
	out = githubLikeSchema.ApplyDefaults(map[string]any{"baseRepo": "custom"})
	assert.Equal(t, "custom", out["baseRepo"])
}

func TestSchemaApplyDefaults_NullAndEmptyValues(t *testing.T) {
	// A JSON null in a stored settings document decodes to a nil value
	// with the key present. Validate accepts it as absent, so
	// ApplyDefaults must fill the default the same way.
	settings := map[string]any{"token": "t", "owner": "o", "baseRepo": nil}
	require.NoError(t, githubLikeSchema.Validate(settings))

	out := githubLikeSchema.ApplyDefaults(settings)
	assert.Equal(t, "wp-backups", out["baseRepo"])
	_, isString := out["baseRepo"].(string)
	assert.True(t, isString)

	// Empty string counts as absent too.
	out = githubLikeSchema.ApplyDefaults(map[string]any{"token": "t", "owner": "o", "baseRepo": ""})
	assert.Equal(t, "wp-backups", out["baseRepo"])

	// A nil value for a field without a default is dropped, not kept.
	out = githubLikeSchema.ApplyDefaults(map[string]any{"token": "t", "owner": "o", "maxBackups": nil})
	_, present := out["maxBackups"]
	assert.False(t, present)
}
