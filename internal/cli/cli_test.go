package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, records map[int]string) string {
	t.Helper()

	schemaDir, err := filepath.Abs(filepath.Join("..", "schema", "testdata"))
	require.NoError(t, err)

	root := t.TempDir()
	storeDir := filepath.Join(root, "database")
	require.NoError(t, os.MkdirAll(storeDir, 0o755))
	for num, body := range records {
		require.NoError(t, os.WriteFile(filepath.Join(storeDir, fmt.Sprintf("%d.json", num)), []byte(body), 0o644))
	}

	cfgPath := filepath.Join(root, "config.yaml")
	cfg := fmt.Sprintf("schema:\n  dir: %q\n  key: type\nstorage:\n  driver: file\n  dir: %q\n", schemaDir, storeDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKnownCommand(t *testing.T) {
	t.Parallel()

	cfgPath := writeFixture(t, map[int]string{
		42: `{"type": "alias", "reason": "r", "mcp": [], "num": 42}`,
		7:  `{"type": "fix", "reason": "r", "mcp": [], "num": 7}`,
	})

	out, err := execute(t, "known", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "7\n42\n", out)
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()

	cfgPath := writeFixture(t, map[int]string{
		42: `{"type": "alias", "reason": "r", "mcp": [], "num": 42}`,
	})
	out, err := execute(t, "check", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "all records valid")

	cfgPath = writeFixture(t, map[int]string{
		3: `{"type": "renamed", "reason": "r", "mcp": [], "num": 3}`,
	})
	out, err = execute(t, "check", "--config", cfgPath)
	require.ErrorContains(t, err, "1 stored records")
	assert.Contains(t, out, "#3")
	assert.Contains(t, out, "rule: enum")
}

func TestRunRequiresCompleteConfig(t *testing.T) {
	t.Parallel()

	cfgPath := writeFixture(t, nil)
	_, err := execute(t, "run", "--config", cfgPath, "--no-repair")
	require.ErrorContains(t, err, "github.owner")
}
