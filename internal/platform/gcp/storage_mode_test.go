package gcp

import (
	"errors"
	"testing"
)

func TestResolveObjectStorageConfig(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		host     string
		want     ObjectStorageMode
		inferred bool
	}{
		{name: "default gcs", want: ObjectStorageModeGCS},
		{name: "explicit gcs ignores host", mode: "gcs", host: "http://fake-gcs:4443", want: ObjectStorageModeGCS},
		{name: "explicit emulator", mode: "GCS_EMULATOR", host: "http://fake-gcs:4443/", want: ObjectStorageModeGCSEmulator},
		{name: "inferred emulator", host: "http://fake-gcs:4443", want: ObjectStorageModeGCSEmulator, inferred: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ResolveObjectStorageConfig(tc.mode, tc.host)
			if err != nil {
				t.Fatalf("ResolveObjectStorageConfig: %v", err)
			}
			if cfg.Mode != tc.want {
				t.Fatalf("mode: want=%q got=%q", tc.want, cfg.Mode)
			}
			if cfg.Inferred != tc.inferred {
				t.Fatalf("inferred: want=%v got=%v", tc.inferred, cfg.Inferred)
			}
			if cfg.IsEmulatorMode() && cfg.EmulatorHost != "http://fake-gcs:4443" {
				t.Fatalf("emulator host not normalised: %q", cfg.EmulatorHost)
			}
		})
	}
}

func TestResolveObjectStorageConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		mode string
		host string
		code ObjectStorageConfigErrorCode
	}{
		{name: "invalid mode", mode: "local", code: ObjectStorageConfigErrorInvalidMode},
		{name: "missing host", mode: "gcs_emulator", code: ObjectStorageConfigErrorMissingEmulatorHost},
		{name: "relative host", mode: "gcs_emulator", host: "fake-gcs:4443", code: ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveObjectStorageConfig(tc.mode, tc.host)
			var cfgErr *ObjectStorageConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ObjectStorageConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Code != tc.code {
				t.Fatalf("code: want=%q got=%q", tc.code, cfgErr.Code)
			}
		})
	}
}

func TestModeSource(t *testing.T) {
	if got := (ObjectStorageConfig{Mode: ObjectStorageModeGCS}).ModeSource(); got != "explicit_or_default" {
		t.Fatalf("ModeSource: got=%q", got)
	}
	if got := (ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Inferred: true}).ModeSource(); got != "inferred_from_emulator_host" {
		t.Fatalf("ModeSource: got=%q", got)
	}
}
