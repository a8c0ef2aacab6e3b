package spheresound

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// Коды формата из заголовка WAV (поле wFormatTag).
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// wavReader читает многоканальный WAV с произвольным доступом по кадрам.
// Заголовок разбирает библиотека go-audio, а сами данные мы читаем
// напрямую из файла: так Seek по кадру превращается в простую
// арифметику смещений внутри data-чанка.
type wavReader struct {
	f          *os.File
	info       FileInfo
	bitDepth   int
	floatData  bool  // семплы хранятся как float32, а не целые
	dataStart  int64 // смещение начала PCM-данных в файле
	blockAlign int   // размер одного кадра в байтах
	raw        []byte
}

func newWAVReader(f *os.File) (*wavReader, error) {
	d := wav.NewDecoder(f)
	d.ReadInfo()
	if d.Err() != nil {
		return nil, d.Err()
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, errors.New("wav: malformed header")
	}

	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("wav: unsupported bit depth %d", d.BitDepth)
	}

	// Для формата EXTENSIBLE go-audio не разбирает subformat, поэтому
	// ориентируемся на разрядность: 32-битные многоканальные рендеры
	// практически всегда float.
	floatData := false
	switch d.WavAudioFormat {
	case wavFormatPCM:
	case wavFormatIEEEFloat:
		floatData = true
	case wavFormatExtensible:
		floatData = d.BitDepth == 32
	default:
		return nil, fmt.Errorf("wav: unsupported audio format %d", d.WavAudioFormat)
	}

	// FwdToPCM оставляет файл на первом байте data-чанка —
	// запоминаем это смещение как точку отсчёта для Seek.
	if err := d.FwdToPCM(); err != nil {
		return nil, err
	}
	dataStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	blockAlign := int(d.NumChans) * int(d.BitDepth) / 8
	return &wavReader{
		f:          f,
		bitDepth:   int(d.BitDepth),
		floatData:  floatData,
		dataStart:  dataStart,
		blockAlign: blockAlign,
		info: FileInfo{
			Channels:    int(d.NumChans),
			SampleRate:  int(d.SampleRate),
			TotalFrames: uint64(d.PCMLen()) / uint64(blockAlign),
		},
	}, nil
}

func (r *wavReader) Info() FileInfo { return r.info }

func (r *wavReader) Seek(frame uint64) error {
	if frame > r.info.TotalFrames {
		frame = r.info.TotalFrames
	}
	_, err := r.f.Seek(r.dataStart+int64(frame)*int64(r.blockAlign), io.SeekStart)
	return err
}

func (r *wavReader) Read(dst []float32, frames int) (int, error) {
	if frames <= 0 {
		return 0, nil
	}
	need := frames * r.blockAlign
	if cap(r.raw) < need {
		r.raw = make([]byte, need)
	}
	buf := r.raw[:need]

	n, err := io.ReadFull(r.f, buf)
	if err == io.ErrUnexpectedEOF {
		// Неполный последний кадр отбрасываем.
		err = nil
	}
	if n < r.blockAlign {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	got := n / r.blockAlign
	r.decode(buf[:got*r.blockAlign], dst)
	return got, nil
}

// decode переводит сырые байты PCM в float32 [-1, 1].
func (r *wavReader) decode(buf []byte, dst []float32) {
	switch {
	case r.floatData:
		for i := 0; i*4+3 < len(buf); i++ {
			bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 |
				uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
			dst[i] = math.Float32frombits(bits)
		}
	case r.bitDepth == 8:
		// 8-битный WAV хранится без знака.
		for i := range buf {
			dst[i] = float32(int(buf[i])-128) / 128
		}
	case r.bitDepth == 16:
		for i := 0; i*2+1 < len(buf); i++ {
			v := int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
			dst[i] = float32(v) / 32768
		}
	case r.bitDepth == 24:
		for i := 0; i*3+2 < len(buf); i++ {
			v := int32(uint32(buf[i*3])<<8|uint32(buf[i*3+1])<<16|uint32(buf[i*3+2])<<24) >> 8
			dst[i] = float32(v) / 8388608
		}
	case r.bitDepth == 32:
		for i := 0; i*4+3 < len(buf); i++ {
			v := int32(uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 |
				uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24)
			dst[i] = float32(float64(v) / 2147483648)
		}
	}
}

func (r *wavReader) Close() error { return r.f.Close() }
