package spheresound

import (
	"errors"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// mp3FrameBytes — размер одного декодированного кадра MP3:
// go-mp3 всегда отдаёт стерео int16, то есть 2 канала по 2 байта.
const mp3FrameBytes = 4

// mp3Reader адаптирует go-mp3 под интерфейс FileReader.
// Декодер поддерживает Seek по байтам распакованного потока,
// поэтому позицию кадра переводим в байтовое смещение напрямую.
type mp3Reader struct {
	f    *os.File
	dec  *mp3.Decoder
	info FileInfo
	raw  []byte
}

func newMP3Reader(f *os.File) (*mp3Reader, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	if dec.Length() <= 0 {
		// Без известной длины невозможен ни цикл, ни подкачка чанков.
		return nil, errors.New("mp3: stream length unknown")
	}
	return &mp3Reader{
		f:   f,
		dec: dec,
		info: FileInfo{
			Channels:    2,
			SampleRate:  dec.SampleRate(),
			TotalFrames: uint64(dec.Length()) / mp3FrameBytes,
		},
	}, nil
}

func (r *mp3Reader) Info() FileInfo { return r.info }

func (r *mp3Reader) Seek(frame uint64) error {
	if frame > r.info.TotalFrames {
		frame = r.info.TotalFrames
	}
	_, err := r.dec.Seek(int64(frame)*mp3FrameBytes, io.SeekStart)
	return err
}

func (r *mp3Reader) Read(dst []float32, frames int) (int, error) {
	if frames <= 0 {
		return 0, nil
	}
	need := frames * mp3FrameBytes
	if cap(r.raw) < need {
		r.raw = make([]byte, need)
	}
	buf := r.raw[:need]

	n, err := io.ReadFull(r.dec, buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if n < mp3FrameBytes {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	got := n / mp3FrameBytes
	for i := 0; i < got*2; i++ {
		v := int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
		dst[i] = float32(v) / 32768
	}
	return got, nil
}

func (r *mp3Reader) Close() error { return r.f.Close() }
