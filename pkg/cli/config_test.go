package cli

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/authentication"
)

func TestReadFromEnvironmentFillsUnsetFields(t *testing.T) {
	t.Setenv("TESLA_VIN", "5YJSA1E14FF101307")
	t.Setenv("TESLA_KEY_FILE", "/tmp/key.bin")

	c := NewConfig()
	c.ReadFromEnvironment()

	if c.VIN != "5YJSA1E14FF101307" {
		t.Fatalf("got VIN %q", c.VIN)
	}
	if c.KeyFilename != "/tmp/key.bin" {
		t.Fatalf("got KeyFilename %q", c.KeyFilename)
	}
}

func TestReadFromEnvironmentDoesNotOverrideExplicitFlags(t *testing.T) {
	t.Setenv("TESLA_VIN", "env-vin")

	c := NewConfig()
	c.VIN = "flag-vin"
	c.ReadFromEnvironment()

	if c.VIN != "flag-vin" {
		t.Fatalf("got %q, want explicit flag value preserved", c.VIN)
	}
}

func TestLoadPrivateKeyRequiresConfiguredFile(t *testing.T) {
	c := NewConfig()
	if _, err := c.LoadPrivateKey(); err == nil {
		t.Fatal("expected an error with no KeyFilename configured")
	}
}

func TestLoadPrivateKeyRejectsUnreadableFile(t *testing.T) {
	c := NewConfig()
	c.KeyFilename = filepath.Join(t.TempDir(), "does-not-exist.bin")
	if _, err := c.LoadPrivateKey(); err == nil {
		t.Fatal("expected an error for a missing key file")
	}
}

func TestLoadPrivateKeyRoundTripsAGeneratedKey(t *testing.T) {
	key, err := authentication.GeneratePrivateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	path := filepath.Join(t.TempDir(), "key.bin")
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := NewConfig()
	c.KeyFilename = path
	loaded, err := c.LoadPrivateKey()
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if string(loaded.PublicBytes()) != string(key.PublicBytes()) {
		t.Fatal("loaded key's public point does not match the original")
	}
}
