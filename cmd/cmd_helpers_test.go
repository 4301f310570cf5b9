package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/store"
)

// useTestStore points cfg at a fresh SQLite file and returns a handle for
// seeding and assertions.
func useTestStore(t *testing.T) store.Store {
	t.Helper()
	zap.ReplaceGlobals(zap.NewNop())

	cfg = &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "prospect.db")},
		Export: config.ExportConfig{Dir: t.TempDir()},
	}

	st, err := store.Open(context.Background(), cfg.Store.Driver, cfg.Store.DatabaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// runCmd executes c.RunE with flags set, restoring flag defaults afterwards.
func runCmd(t *testing.T, c *cobra.Command, args []string, flags map[string]string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetContext(context.Background())

	for k, v := range flags {
		require.NoError(t, c.Flags().Set(k, v), k)
	}
	t.Cleanup(func() {
		for k := range flags {
			f := c.Flags().Lookup(k)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.SetOut(nil)
		c.SetErr(nil)
	})

	err := c.RunE(c, args)
	return out.String(), errOut.String(), err
}
