package artifacts

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const emptyABI = `[]`

func writeArtifactFile(t *testing.T, fs afero.Fs, path string, file map[string]any) {
	t.Helper()

	data, err := json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, data, 0644))
}
