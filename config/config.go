// Package config resolves the device configuration injected into
// usb_init on the original firmware target (spec.md §9, "the most
// complete variant ... with a configurable usb_config_t injected into
// usb_init"). It loads vendor/product/release identifiers, the default
// HID idle rate, and the FIFO HAL bus directory from environment
// variables and an optional configuration file via viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DeviceConfig mirrors the fields the original usb_config_t injects into
// usb_init: the descriptor identity fields and the bank-FIFO bus location
// used by the test HAL. It carries no behavioural fields (no string
// descriptors, no alternate-speed settings) beyond what spec.md describes.
type DeviceConfig struct {
	// VendorID is the USB-IF vendor ID reported in the device descriptor.
	VendorID uint16

	// ProductID is the product ID reported in the device descriptor.
	ProductID uint16

	// DeviceRelease is the bcdDevice field reported in the device
	// descriptor (binary-coded decimal, e.g. 0x0100 for "1.00").
	DeviceRelease uint16

	// DefaultIdleRate seeds the HID idle-rate counter at power-up, in the
	// same 4 ms units SET_IDLE uses. 0 disables idle refresh until the
	// host issues its own SET_IDLE.
	DefaultIdleRate uint16

	// BusDir names the directory the FIFO HAL creates its per-device
	// named-pipe subdirectory under. Only consulted by the FIFO HAL; the
	// serial HAL ignores it.
	BusDir string
}

// defaults matches the bit-exact values spec.md §6 requires.
var defaults = DeviceConfig{
	VendorID:        0xFEED,
	ProductID:       0x0001,
	DeviceRelease:   0x0100,
	DefaultIdleRate: 125,
	BusDir:          "/tmp/fightkey-bus",
}

// Load resolves a DeviceConfig from environment variables prefixed
// FIGHTKEY_ (e.g. FIGHTKEY_VENDOR_ID), an optional configuration file at
// configPath (may be empty, in which case only the environment and
// defaults apply), and falls back to [defaults] for anything unset.
//
// configPath, when non-empty, must name a file viper can identify by
// extension (.yaml, .yml, .json, .toml, ...).
func Load(configPath string) (DeviceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("FIGHTKEY")
	v.AutomaticEnv()

	v.SetDefault("vendor_id", defaults.VendorID)
	v.SetDefault("product_id", defaults.ProductID)
	v.SetDefault("device_release", defaults.DeviceRelease)
	v.SetDefault("default_idle_rate", defaults.DefaultIdleRate)
	v.SetDefault("bus_dir", defaults.BusDir)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return DeviceConfig{}, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	cfg := DeviceConfig{
		VendorID:        uint16(v.GetUint32("vendor_id")),
		ProductID:       uint16(v.GetUint32("product_id")),
		DeviceRelease:   uint16(v.GetUint32("device_release")),
		DefaultIdleRate: uint16(v.GetUint32("default_idle_rate")),
		BusDir:          v.GetString("bus_dir"),
	}
	return cfg, nil
}

// Default returns the bit-exact configuration spec.md §6 describes.
func Default() DeviceConfig {
	return defaults
}
