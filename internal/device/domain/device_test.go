package domain

import (
	"testing"
	"time"
)

func TestDeviceStatus_Valid(t *testing.T) {
	for _, s := range []DeviceStatus{DeviceStatusActive, DeviceStatusBanned, DeviceStatusSuspended} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if DeviceStatus("deleted").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestDevice_IsActive(t *testing.T) {
	d := &Device{Status: DeviceStatusActive}
	if !d.IsActive() {
		t.Error("active device should be active")
	}

	d.Status = DeviceStatusBanned
	if d.IsActive() {
		t.Error("banned device should not be active")
	}

	d.Status = DeviceStatusSuspended
	if d.IsActive() {
		t.Error("suspended device should not be active")
	}

	now := time.Now().UTC()
	d = &Device{Status: DeviceStatusActive, DeletedAt: &now}
	if d.IsActive() {
		t.Error("soft-deleted device should not be active")
	}

	var nilDevice *Device
	if nilDevice.IsActive() {
		t.Error("nil device should not be active")
	}
}
