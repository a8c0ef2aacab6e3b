package spheresound

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// sampleAt — детерминированное значение семпла для фальшивого файла:
// по нему тесты проверяют, что нужные кадры попали в нужные места.
func sampleAt(frame uint64, ch int) float32 {
	return float32((int(frame)*7+ch*13)%200-100) / 100
}

// fakeReader имитирует открытый аудиофайл и считает обращения,
// чтобы тесты могли проверить, сколько раз кэш ходил "на диск".
type fakeReader struct {
	channels int
	rate     int
	total    uint64
	pos      uint64
	seeks    int
	reads    int
	maxRead  int   // максимум кадров за один Read (0 — без ограничения)
	err      error // если задана, Seek и Read возвращают её
	closed   bool
}

func newFakeReader(channels int, total uint64) *fakeReader {
	return &fakeReader{channels: channels, rate: 100, total: total}
}

func (r *fakeReader) Info() FileInfo {
	return FileInfo{Channels: r.channels, SampleRate: r.rate, TotalFrames: r.total}
}

func (r *fakeReader) Seek(frame uint64) error {
	r.seeks++
	if r.err != nil {
		return r.err
	}
	r.pos = frame
	return nil
}

func (r *fakeReader) Read(dst []float32, frames int) (int, error) {
	r.reads++
	if r.err != nil {
		return 0, r.err
	}
	if left := r.total - r.pos; uint64(frames) > left {
		frames = int(left)
	}
	if r.maxRead > 0 && frames > r.maxRead {
		frames = r.maxRead
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < r.channels; c++ {
			dst[i*r.channels+c] = sampleAt(r.pos+uint64(i), c)
		}
	}
	r.pos += uint64(frames)
	return frames, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func newSyncCache(t *testing.T, r FileReader, chunkFrames uint64) *StreamCache {
	t.Helper()
	c, err := NewStreamCache(r, chunkFrames, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStreamCache: %v", err)
	}
	return c
}

func newAsyncCache(t *testing.T, r FileReader, chunkFrames uint64) *StreamCache {
	t.Helper()
	c, err := NewStreamCache(r, chunkFrames, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStreamCache: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// Инвариант чанка: после Ensure(f) кадр f лежит внутри резидентного окна.
func TestChunkInvariant(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newSyncCache(t, r, 400)

	for _, f := range []uint64{0, 1, 399, 400, 401, 799, 800, 999} {
		if err := c.Ensure(f); err != nil {
			t.Fatalf("Ensure(%d): %v", f, err)
		}
		start, frames := c.Resident()
		if f < start || f >= start+frames {
			t.Errorf("after Ensure(%d) resident window is [%d, %d)", f, start, start+frames)
		}
	}
}

// Повторный Ensure того же кадра не должен ходить к файлу ещё раз.
func TestEnsureIdempotent(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newSyncCache(t, r, 400)

	if err := c.Ensure(500); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	seeks := r.seeks
	if err := c.Ensure(500); err != nil {
		t.Fatalf("Ensure (repeat): %v", err)
	}
	if r.seeks != seeks {
		t.Errorf("second Ensure performed %d extra seek(s)", r.seeks-seeks)
	}
}

// Последний чанк файла короче остальных.
func TestPartialFinalChunk(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newSyncCache(t, r, 400)

	if err := c.Ensure(950); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	start, frames := c.Resident()
	if start != 800 || frames != 200 {
		t.Errorf("resident window [%d, %d frames), want [800, 200 frames)", start, frames)
	}
	if start+frames > r.total {
		t.Error("chunk extends beyond the file")
	}
}

// Чанк дочитывается до конца, даже если файл отдаёт данные мелкими порциями.
func TestChunkLoadsInPieces(t *testing.T) {
	r := newFakeReader(3, 500)
	r.maxRead = 64
	c := newSyncCache(t, r, 400)

	if err := c.Ensure(10); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	frame, err := c.Frame(399)
	if err != nil {
		t.Fatalf("Frame(399): %v", err)
	}
	for ch := 0; ch < 3; ch++ {
		if frame[ch] != sampleAt(399, ch) {
			t.Errorf("frame 399 channel %d = %v, want %v", ch, frame[ch], sampleAt(399, ch))
		}
	}
}

// Frame без подходящего Ensure — нарушение контракта.
func TestFrameOutOfWindow(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newSyncCache(t, r, 400)

	if _, err := c.Frame(700); !errors.Is(err, ErrOutOfWindow) {
		t.Errorf("Frame(700) = %v, want ErrOutOfWindow", err)
	}
	if err := c.Ensure(1000); !errors.Is(err, ErrOutOfWindow) {
		t.Errorf("Ensure(totalFrames) = %v, want ErrOutOfWindow", err)
	}
}

// Фоновая подкачка: вход в последнюю четверть чанка запускает загрузку
// следующего, и на границе происходит подмена без ожидания.
func TestAsyncPrefetchPromotion(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newAsyncCache(t, r, 400)

	if err := c.Ensure(50); err != nil {
		t.Fatalf("Ensure(50): %v", err)
	}
	// 350 — в последней четверти чанка [0, 400): должна уйти заявка на 400.
	if err := c.Ensure(350); err != nil {
		t.Fatalf("Ensure(350): %v", err)
	}
	c.WaitPending()

	if err := c.Ensure(400); err != nil {
		t.Fatalf("Ensure(400) after prefetch: %v", err)
	}
	start, _ := c.Resident()
	if start != 400 {
		t.Errorf("resident chunk starts at %d, want 400", start)
	}
	frame, err := c.Frame(400)
	if err != nil {
		t.Fatalf("Frame(400): %v", err)
	}
	if frame[1] != sampleAt(400, 1) {
		t.Errorf("frame 400 channel 1 = %v, want %v", frame[1], sampleAt(400, 1))
	}
}

// Промах мимо резидентного и подкачанного чанков не блокирует:
// возвращается ErrChunkNotReady, а после загрузки кадр доступен.
func TestAsyncMissReturnsNotReady(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newAsyncCache(t, r, 400)

	if err := c.Ensure(850); !errors.Is(err, ErrChunkNotReady) {
		t.Fatalf("Ensure(850) = %v, want ErrChunkNotReady", err)
	}
	c.WaitPending()
	if err := c.Ensure(850); err != nil {
		t.Fatalf("Ensure(850) after load: %v", err)
	}
}

// Prefetch(0) возвращает нулевой чанк в память до точки зацикливания.
func TestPrefetchChunkZero(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newAsyncCache(t, r, 400)

	if err := c.Ensure(850); errors.Is(err, ErrChunkNotReady) {
		c.WaitPending()
		if err = c.Ensure(850); err != nil {
			t.Fatalf("Ensure(850): %v", err)
		}
	}

	c.Prefetch(0)
	c.WaitPending()
	if err := c.Ensure(0); err != nil {
		t.Fatalf("Ensure(0) after Prefetch: %v", err)
	}
	if f, err := c.Frame(0); err != nil || f[0] != sampleAt(0, 0) {
		t.Errorf("Frame(0) = %v, %v", f, err)
	}
}

// Ошибка чтения всплывает как ErrReadFailed и считается, а после
// восстановления файла подкачка продолжает работать.
func TestReadFailureAndRecovery(t *testing.T) {
	r := newFakeReader(2, 1000)
	c := newSyncCache(t, r, 400)

	diskErr := errors.New("disk gone")
	r.err = diskErr
	if err := c.Ensure(500); !errors.Is(err, ErrReadFailed) {
		t.Fatalf("Ensure with broken reader = %v, want ErrReadFailed", err)
	}
	if c.Fails() != 1 {
		t.Errorf("Fails() = %d, want 1", c.Fails())
	}
	if c.LastError() == nil {
		t.Error("LastError() should be set")
	}

	r.err = nil
	if err := c.Ensure(500); err != nil {
		t.Fatalf("Ensure after recovery: %v", err)
	}
	if c.Fails() != 0 {
		t.Errorf("Fails() after recovery = %d, want 0", c.Fails())
	}
}

// Close дожидается фоновой горутины; обращения после Close безопасны.
func TestCloseStopsPrefetch(t *testing.T) {
	r := newFakeReader(2, 1000)
	c, err := NewStreamCache(r, 400, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStreamCache: %v", err)
	}
	c.Close()
	c.Close() // повторный Close — no-op

	if err := c.Ensure(850); !errors.Is(err, ErrChunkNotReady) {
		t.Errorf("Ensure after Close = %v, want ErrChunkNotReady", err)
	}
	// Резидентный чанк по-прежнему читается: память не освобождали.
	if _, err := c.Frame(0); err != nil {
		t.Errorf("Frame(0) after Close: %v", err)
	}
}
