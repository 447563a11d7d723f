package vocab_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ghego/cs224n-win18-squad/internal/vocab"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeGlove(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glove.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGloVe(t *testing.T) {
	path := writeGlove(t, "the 0.1 0.2 0.3\ncat 1.0 2.0 3.0\n")

	v, err := vocab.LoadGloVe(path, 3, quietLogger())
	if err != nil {
		t.Fatalf("LoadGloVe: %v", err)
	}

	if v.Size() != 4 {
		t.Errorf("size = %d, want 4 (2 specials + 2 words)", v.Size())
	}
	if v.ID("the") != 2 || v.ID("cat") != 3 {
		t.Errorf("ids: the=%d cat=%d", v.ID("the"), v.ID("cat"))
	}
	if v.Word(3) != "cat" {
		t.Errorf("Word(3) = %q", v.Word(3))
	}

	// Special rows are zero vectors.
	for i := 0; i < 6; i++ {
		if v.Embeddings[i] != 0 {
			t.Fatalf("special row element %d = %v, want 0", i, v.Embeddings[i])
		}
	}
	// "cat" occupies row 3.
	if v.Embeddings[3*3] != 1.0 || v.Embeddings[3*3+2] != 3.0 {
		t.Errorf("cat row = %v", v.Embeddings[9:12])
	}
}

func TestUnknownWordsMapToUnk(t *testing.T) {
	path := writeGlove(t, "the 0.1 0.2\n")
	v, err := vocab.LoadGloVe(path, 2, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	if got := v.ID("zyzzyva"); got != vocab.UnkID {
		t.Errorf("unknown word id = %d, want %d", got, vocab.UnkID)
	}
	ids := v.IDs([]string{"the", "zyzzyva"})
	if ids[0] != 2 || ids[1] != vocab.UnkID {
		t.Errorf("IDs = %v", ids)
	}
}

func TestDimensionMismatchFails(t *testing.T) {
	path := writeGlove(t, "the 0.1 0.2 0.3\nshort 1.0\n")
	if _, err := vocab.LoadGloVe(path, 3, quietLogger()); err == nil {
		t.Error("dimension mismatch went undetected")
	}
}

func TestMissingFileFails(t *testing.T) {
	if _, err := vocab.LoadGloVe("/no/such/file.txt", 50, quietLogger()); err == nil {
		t.Error("missing file did not error")
	}
}
