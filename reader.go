package spheresound

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat возвращается, когда файл не удалось открыть
// ни одним из известных декодеров.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// FileInfo — параметры открытого аудиофайла.
type FileInfo struct {
	Channels    int    // число каналов в файле
	SampleRate  int    // частота дискретизации, Гц
	TotalFrames uint64 // общее число кадров (кадр = по одному семплу на канал)
}

// Duration возвращает длительность файла в секундах.
func (fi FileInfo) Duration() float64 {
	if fi.SampleRate <= 0 {
		return 0
	}
	return float64(fi.TotalFrames) / float64(fi.SampleRate)
}

// FileReader — источник декодированных кадров с произвольным доступом.
// Семплы всегда отдаются как float32 в диапазоне [-1, 1], каналы
// чередуются внутри кадра (interleaved).
type FileReader interface {
	// Info возвращает параметры файла, известные после открытия.
	Info() FileInfo
	// Seek устанавливает позицию чтения на указанный кадр.
	Seek(frame uint64) error
	// Read декодирует до frames кадров в dst (len(dst) >= frames*Channels)
	// и возвращает число реально прочитанных кадров. В конце файла
	// возвращает 0, io.EOF.
	Read(dst []float32, frames int) (int, error)
	// Close освобождает файл. После Close остальные методы вызывать нельзя.
	Close() error
}

// OpenFile открывает аудиофайл, подбирая подходящий декодер по содержимому.
// Сначала пробуем WAV (основной формат многоканальных рендеров),
// после неудачи перематываем файл в начало и пробуем MP3.
func OpenFile(path string) (FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if r, err := newWAVReader(f); err == nil {
		return r, nil
	}

	// Сбрасываем указатель после неудачной попытки.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	if r, err := newMP3Reader(f); err == nil {
		return r, nil
	}

	f.Close()
	ext := strings.ToLower(filepath.Ext(path))
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}
