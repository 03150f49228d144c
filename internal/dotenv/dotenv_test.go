package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingFileIsNoop(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFileLoadsValuesAndPreservesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LINGUA_TEST_NEW=from-file\nLINGUA_TEST_EXISTING=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("LINGUA_TEST_EXISTING", "from-env")
	t.Setenv("LINGUA_TEST_NEW", "")
	_ = os.Unsetenv("LINGUA_TEST_NEW")

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := os.Getenv("LINGUA_TEST_NEW"); got != "from-file" {
		t.Errorf("LINGUA_TEST_NEW = %q, want from-file", got)
	}
	if got := os.Getenv("LINGUA_TEST_EXISTING"); got != "from-env" {
		t.Errorf("LINGUA_TEST_EXISTING = %q, want from-env (existing env wins)", got)
	}
}
