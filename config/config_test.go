package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FIGHTKEY_VENDOR_ID", "4660") // 0x1234
	t.Setenv("FIGHTKEY_PRODUCT_ID", "22136")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), cfg.VendorID)
	require.Equal(t, uint16(22136), cfg.ProductID)
	require.Equal(t, Default().DefaultIdleRate, cfg.DefaultIdleRate)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fightkey.yaml")
	contents := "vendor_id: 100\nproduct_id: 200\ndefault_idle_rate: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint16(100), cfg.VendorID)
	require.Equal(t, uint16(200), cfg.ProductID)
	require.Equal(t, uint16(10), cfg.DefaultIdleRate)
	require.Equal(t, Default().BusDir, cfg.BusDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
