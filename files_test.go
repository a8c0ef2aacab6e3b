package spheresound

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// Сканер берёт только аудиофайлы, пропускает каталоги и сортирует имена.
func TestScanAudioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.wav", "track.MP3", "notes.txt", "cover.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.wav"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := ScanAudioFiles(dir)
	if err != nil {
		t.Fatalf("ScanAudioFiles: %v", err)
	}
	want := []string{"a.wav", "b.wav", "track.MP3"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("ScanAudioFiles = %v, want %v", files, want)
	}
}

func TestScanAudioFilesMissingFolder(t *testing.T) {
	if _, err := ScanAudioFiles(filepath.Join(t.TempDir(), "no-such-dir")); err == nil {
		t.Error("scan of a missing folder should fail")
	}
}

func TestScanAudioFilesEmpty(t *testing.T) {
	files, err := ScanAudioFiles(t.TempDir())
	if err != nil {
		t.Fatalf("ScanAudioFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("empty folder yielded %v", files)
	}
}
