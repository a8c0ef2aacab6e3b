package spheresound

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// supportedExtensions — форматы, которые умеет открывать OpenFile.
var supportedExtensions = map[string]bool{
	".wav": true,
	".mp3": true,
}

// ScanAudioFiles возвращает имена аудиофайлов в папке. Порядок
// детерминированный: лексикографическая сортировка, чтобы клавиши
// выбора 1..9 всегда указывали на одни и те же файлы.
func ScanAudioFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if supportedExtensions[ext] {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
