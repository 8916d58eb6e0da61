package device

import (
	"errors"
	"testing"

	"github.com/crockeo/fightkey/pkg"
)

func TestNewDevice(t *testing.T) {
	dev := NewDevice()
	if dev.State() != StateUnknown {
		t.Errorf("State() = %v, want %v", dev.State(), StateUnknown)
	}
}

func TestOnEndOfReset(t *testing.T) {
	dev := NewDevice()
	dev.SetAddress(5)
	dev.SetConfigurationValue(1)
	dev.SetIdle(0x0A00)
	dev.SetProtocol(1)

	dev.OnEndOfReset()

	if dev.State() != StateDisconnected {
		t.Errorf("State() = %v, want %v", dev.State(), StateDisconnected)
	}
	if dev.Address() != 0 {
		t.Errorf("Address() = %d, want 0", dev.Address())
	}
	if dev.ConfigValue() != 0 {
		t.Errorf("ConfigValue() = %d, want 0", dev.ConfigValue())
	}
	if dev.GetIdle() != 0 {
		t.Errorf("GetIdle() = %d, want 0", dev.GetIdle())
	}
	if dev.GetProtocol() != 0 {
		t.Errorf("GetProtocol() = %d, want 0", dev.GetProtocol())
	}
}

func TestOnEndOfReset_FromUnknown(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()
	if dev.State() != StateDisconnected {
		t.Errorf("State() = %v, want %v", dev.State(), StateDisconnected)
	}
}

func TestSetAddress(t *testing.T) {
	dev := NewDevice()
	dev.SetAddress(42)
	if dev.Address() != 42 {
		t.Errorf("Address() = %d, want 42", dev.Address())
	}
}

func TestSetConfigurationValue(t *testing.T) {
	tests := []struct {
		name  string
		value uint8
		want  State
	}{
		{"nonzero attaches", 1, StateAttached},
		{"zero deconfigures", 0, StateDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewDevice()
			dev.OnEndOfReset()
			dev.SetConfigurationValue(tt.value)
			if dev.State() != tt.want {
				t.Errorf("State() = %v, want %v", dev.State(), tt.want)
			}
			if dev.ConfigValue() != tt.value {
				t.Errorf("ConfigValue() = %d, want %d", dev.ConfigValue(), tt.value)
			}
		})
	}
}

func TestSetIdleGetIdle(t *testing.T) {
	dev := NewDevice()
	// wValue's low byte is the idle duration, stored whole with no shift.
	dev.SetIdle(0x002A)
	if got := dev.GetIdle(); got != 0x2A {
		t.Errorf("GetIdle() = 0x%02X, want 0x2A", got)
	}
}

func TestSetDefaultIdle_SurvivesReset(t *testing.T) {
	dev := NewDevice()
	dev.SetDefaultIdle(5)
	dev.SetIdle(0x0063) // host overrides with a different idle rate

	dev.OnEndOfReset()

	if got := dev.GetIdle(); got != 5 {
		t.Errorf("GetIdle() after reset = %d, want 5 (default restored)", got)
	}
}

func TestSetProtocolGetProtocol(t *testing.T) {
	dev := NewDevice()
	dev.SetProtocol(1)
	if got := dev.GetProtocol(); got != 1 {
		t.Errorf("GetProtocol() = %d, want 1", got)
	}
	dev.SetProtocol(0)
	if got := dev.GetProtocol(); got != 0 {
		t.Errorf("GetProtocol() = %d, want 0", got)
	}
}

func TestSetLED(t *testing.T) {
	dev := NewDevice()
	dev.SetLED(0x05)
	if got := dev.LEDShadow(); got != 0x05 {
		t.Errorf("LEDShadow() = 0x%02X, want 0x05", got)
	}
}

func TestBuildReport(t *testing.T) {
	dev := NewDevice()
	dev.SetModifier(0x02)
	dev.SetPressedKey(0, 0x04)
	dev.SetPressedKey(1, 0x05)

	var buf [ReportSize]byte
	n := dev.BuildReport(buf[:])
	if n != ReportSize {
		t.Fatalf("BuildReport() = %d, want %d", n, ReportSize)
	}
	if buf[0] != 0x02 {
		t.Errorf("modifier byte = 0x%02X, want 0x02", buf[0])
	}
	if buf[1] != 0 {
		t.Errorf("reserved byte = 0x%02X, want 0", buf[1])
	}
	if buf[2] != 0x04 || buf[3] != 0x05 {
		t.Errorf("keycodes = %v, want [0x04 0x05 ...]", buf[2:8])
	}
}

func TestBuildReport_BufferTooSmall(t *testing.T) {
	dev := NewDevice()
	var buf [4]byte
	if n := dev.BuildReport(buf[:]); n != 0 {
		t.Errorf("BuildReport() = %d, want 0", n)
	}
}

func TestSubmitReport_NotAttached(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()

	called := false
	err := dev.SubmitReport(func(report []byte) error {
		called = true
		return nil
	})
	if !errors.Is(err, pkg.ErrNotAttached) {
		t.Errorf("SubmitReport() error = %v, want %v", err, pkg.ErrNotAttached)
	}
	if called {
		t.Error("write callback invoked while not attached")
	}
}

func TestSubmitReport_Attached(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()
	dev.SetConfigurationValue(1)
	dev.SetModifier(0x01)

	var captured []byte
	err := dev.SubmitReport(func(report []byte) error {
		captured = append([]byte(nil), report...)
		return nil
	})
	if err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	if len(captured) != ReportSize {
		t.Fatalf("captured report length = %d, want %d", len(captured), ReportSize)
	}
	if captured[0] != 0x01 {
		t.Errorf("captured modifier = 0x%02X, want 0x01", captured[0])
	}
}

func TestSubmitReport_WriteError(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()
	dev.SetConfigurationValue(1)

	wantErr := pkg.ErrDisconnected
	err := dev.SubmitReport(func(report []byte) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("SubmitReport() error = %v, want %v", err, wantErr)
	}
}

func TestOnStartOfFrame_NotAttached(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()

	called := false
	err := dev.OnStartOfFrame(func(report []byte) (bool, error) {
		called = true
		return true, nil
	})
	if err != nil {
		t.Errorf("OnStartOfFrame() error = %v, want nil", err)
	}
	if called {
		t.Error("refresh invoked while not attached")
	}
}

func TestOnStartOfFrame_RefreshOnIdleExpiry(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()
	dev.SetConfigurationValue(1)
	dev.SetIdle(1) // idle expires after 1 * 4 ticks

	refreshCount := 0
	for i := 0; i < 4; i++ {
		if err := dev.OnStartOfFrame(func(report []byte) (bool, error) {
			refreshCount++
			return true, nil
		}); err != nil {
			t.Fatalf("OnStartOfFrame() error = %v", err)
		}
	}
	if refreshCount != 1 {
		t.Errorf("refreshCount = %d, want 1 after 4 ticks with idle=1", refreshCount)
	}
}

func TestOnStartOfFrame_NoRefreshBeforeEveryFourthTick(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()
	dev.SetConfigurationValue(1)
	dev.SetIdle(1)

	refreshCount := 0
	for i := 0; i < 3; i++ {
		dev.OnStartOfFrame(func(report []byte) (bool, error) {
			refreshCount++
			return true, nil
		})
	}
	if refreshCount != 0 {
		t.Errorf("refreshCount = %d, want 0 after only 3 ticks", refreshCount)
	}
}

func TestOnStartOfFrame_ZeroIdleNeverRefreshes(t *testing.T) {
	dev := NewDevice()
	dev.OnEndOfReset()
	dev.SetConfigurationValue(1)
	// idleValue left at its zero default: indefinite, never auto-refreshes.

	refreshCount := 0
	for i := 0; i < 40; i++ {
		dev.OnStartOfFrame(func(report []byte) (bool, error) {
			refreshCount++
			return true, nil
		})
	}
	if refreshCount != 0 {
		t.Errorf("refreshCount = %d, want 0 with idleValue=0", refreshCount)
	}
}

func TestEnterExitCritical(t *testing.T) {
	dev := NewDevice()
	dev.EnterCritical()
	dev.address = 7
	dev.ExitCritical()
	if dev.Address() != 7 {
		t.Errorf("Address() = %d, want 7", dev.Address())
	}
}

func TestModifierAndPressedKeysUnsynchronized(t *testing.T) {
	dev := NewDevice()
	dev.SetModifier(0x11)
	dev.SetPressedKey(0, 0x22)
	dev.SetPressedKey(5, 0x33)

	if dev.Modifier() != 0x11 {
		t.Errorf("Modifier() = 0x%02X, want 0x11", dev.Modifier())
	}
	keys := dev.PressedKeys()
	if keys[0] != 0x22 || keys[5] != 0x33 {
		t.Errorf("PressedKeys() = %v, want [0x22 ... 0x33]", keys)
	}
}
