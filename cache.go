package spheresound

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrChunkNotReady — нужный чанк ещё подкачивается в фоне.
	// Не фатально: рендер отдаёт тишину и повторяет попытку в следующем колбэке.
	ErrChunkNotReady = errors.New("stream chunk not ready")
	// ErrOutOfWindow — запрошен кадр вне резидентного чанка.
	// Это нарушение контракта вызывающей стороны (Frame без Ensure), а не ошибка ввода-вывода.
	ErrOutOfWindow = errors.New("frame outside resident chunk")
	// ErrReadFailed — ошибка чтения из файла при подкачке чанка.
	ErrReadFailed = errors.New("stream read failed")
)

// streamChunk — одно окно декодированных кадров. Чанк заменяется
// только целиком: буфер наполняется до конца и лишь потом становится
// видимым рендеру, чтобы не отдать наполовину прочитанные данные.
type streamChunk struct {
	start   uint64
	frames  uint64
	samples []float32
}

func (c *streamChunk) contains(frame uint64) bool {
	return frame >= c.start && frame < c.start+c.frames
}

// StreamCache держит в памяти ровно один чанк файла независимо от его
// размера. Следующий чанк подкачивается фоновой горутиной заранее
// (когда воспроизведение входит в последнюю четверть текущего), поэтому
// на границе чанков аудиопоток не ждёт диск — он просто подменяет
// указатель. Если подкачка не успела, Ensure возвращает ErrChunkNotReady.
//
// Режим syncRefill сохраняет прежнее поведение (чтение прямо в колбэке):
// он проще и детерминированнее, но может задержать аудиопоток на время
// дискового чтения.
type StreamCache struct {
	reader      FileReader
	channels    int
	chunkFrames uint64
	totalFrames uint64
	syncRefill  bool
	log         zerolog.Logger

	// cur пишется только потоком, вызывающим Ensure/Frame (аудиопоток),
	// поэтому Frame читает его без блокировки.
	cur *streamChunk

	mu      sync.Mutex
	idle    *sync.Cond
	next    *streamChunk // готовый результат фоновой загрузки
	pending int64        // граница чанка, которая сейчас грузится; -1 если никакая
	fails   int          // подряд идущие неудачные подкачки
	lastErr error
	lastLog time.Time
	closed  bool

	reqCh  chan uint64
	quit   chan struct{}
	joined chan struct{}
}

// NewStreamCache создаёт кэш поверх открытого файла и синхронно
// загружает нулевой чанк (это происходит в управляющем потоке при
// открытии файла, а не в аудио-колбэке). Кэш не владеет reader'ом:
// закрывать файл можно только после Close.
func NewStreamCache(r FileReader, chunkFrames uint64, syncRefill bool, log zerolog.Logger) (*StreamCache, error) {
	if chunkFrames == 0 {
		return nil, errors.New("stream cache: chunk size must be positive")
	}
	info := r.Info()
	c := &StreamCache{
		reader:      r,
		channels:    info.Channels,
		chunkFrames: chunkFrames,
		totalFrames: info.TotalFrames,
		syncRefill:  syncRefill,
		log:         log,
		pending:     -1,
		reqCh:       make(chan uint64, 1),
		quit:        make(chan struct{}),
		joined:      make(chan struct{}),
	}
	c.idle = sync.NewCond(&c.mu)

	if c.totalFrames > 0 {
		chunk, err := c.load(0)
		if err != nil {
			return nil, err
		}
		c.cur = chunk
	}

	if syncRefill {
		close(c.joined) // горутина не запускается, ждать нечего
	} else {
		go c.run()
	}
	return c, nil
}

// Ensure гарантирует, что кадр frame находится в резидентном чанке,
// при необходимости подменяя чанк. Вызывается аудиопотоком перед Frame.
func (c *StreamCache) Ensure(frame uint64) error {
	if frame >= c.totalFrames {
		return fmt.Errorf("%w: frame %d of %d", ErrOutOfWindow, frame, c.totalFrames)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil && c.cur.contains(frame) {
		c.anticipateLocked(frame)
		return nil
	}

	// Может, фоновая загрузка уже принесла нужный чанк.
	if c.next != nil && c.next.contains(frame) {
		c.cur = c.next
		c.next = nil
		c.anticipateLocked(frame)
		return nil
	}

	if c.closed {
		return ErrChunkNotReady
	}

	boundary := frame / c.chunkFrames * c.chunkFrames
	if c.syncRefill {
		chunk, err := c.load(boundary)
		if err != nil {
			c.noteFailureLocked(boundary, err)
			return err
		}
		c.fails = 0
		c.cur = chunk
		return nil
	}

	c.requestLocked(boundary)
	return ErrChunkNotReady
}

// Frame возвращает срез с семплами одного кадра внутри резидентного
// чанка. Требует предшествующего успешного Ensure для этого кадра.
// Вызывается только из аудиопотока.
func (c *StreamCache) Frame(frame uint64) ([]float32, error) {
	cur := c.cur
	if cur == nil || !cur.contains(frame) {
		return nil, ErrOutOfWindow
	}
	off := (frame - cur.start) * uint64(c.channels)
	return cur.samples[off : off+uint64(c.channels)], nil
}

// Prefetch просит фоновую горутину заранее загрузить чанк, содержащий
// frame. Движок вызывает это перед точкой зацикливания, чтобы к моменту
// перехода на нулевой кадр чанк 0 уже был в памяти.
func (c *StreamCache) Prefetch(frame uint64) {
	if frame >= c.totalFrames {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	boundary := frame / c.chunkFrames * c.chunkFrames
	if (c.cur != nil && c.cur.contains(frame)) || (c.next != nil && c.next.contains(frame)) {
		return
	}
	c.requestLocked(boundary)
}

// Resident возвращает границы текущего резидентного чанка.
func (c *StreamCache) Resident() (start, frames uint64) {
	if c.cur == nil {
		return 0, 0
	}
	return c.cur.start, c.cur.frames
}

// Fails возвращает число подряд идущих неудачных подкачек,
// LastError — последнюю ошибку чтения.
func (c *StreamCache) Fails() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fails
}

func (c *StreamCache) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// WaitPending блокирует, пока не завершится текущая фоновая загрузка.
// Нужен управляющему потоку и тестам; аудиопоток его не вызывает.
func (c *StreamCache) WaitPending() {
	c.mu.Lock()
	for c.pending != -1 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Close останавливает фоновую горутину и дожидается завершения
// текущей загрузки, чтобы reader можно было безопасно закрыть.
func (c *StreamCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.quit)
	<-c.joined
}

// anticipateLocked планирует подкачку следующего чанка, когда
// воспроизведение вошло в последнюю четверть текущего.
func (c *StreamCache) anticipateLocked(frame uint64) {
	if c.syncRefill || c.cur == nil {
		return
	}
	lead := c.chunkFrames / 4
	if lead == 0 {
		lead = 1
	}
	end := c.cur.start + c.cur.frames
	if frame+lead < end {
		return
	}
	if end >= c.totalFrames {
		return // последний чанк файла, дальше нечего грузить
	}
	if c.next != nil && c.next.contains(end) {
		return
	}
	c.requestLocked(end)
}

// requestLocked отправляет границу чанка фоновой горутине.
// Одновременно в работе держим не больше одного запроса.
func (c *StreamCache) requestLocked(boundary uint64) {
	if c.syncRefill || c.closed || c.pending != -1 {
		return
	}
	select {
	case c.reqCh <- boundary:
		c.pending = int64(boundary)
	default:
	}
}

func (c *StreamCache) run() {
	defer close(c.joined)
	for {
		select {
		case <-c.quit:
			return
		case boundary := <-c.reqCh:
			chunk, err := c.load(boundary)

			c.mu.Lock()
			if err != nil {
				c.noteFailureLocked(boundary, err)
			} else {
				c.fails = 0
				c.next = chunk
			}
			c.pending = -1
			c.idle.Broadcast()
			c.mu.Unlock()
		}
	}
}

// load читает один чанк целиком. Выполняется либо фоновой горутиной,
// либо (в режиме syncRefill) потоком, вызвавшим Ensure.
func (c *StreamCache) load(boundary uint64) (*streamChunk, error) {
	frames := c.chunkFrames
	if boundary+frames > c.totalFrames {
		frames = c.totalFrames - boundary
	}

	samples := make([]float32, frames*uint64(c.channels))
	if err := c.reader.Seek(boundary); err != nil {
		return nil, fmt.Errorf("%w: seek to %d: %v", ErrReadFailed, boundary, err)
	}

	var got uint64
	for got < frames {
		n, err := c.reader.Read(samples[got*uint64(c.channels):], int(frames-got))
		if n > 0 {
			got += uint64(n)
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read at %d: %v", ErrReadFailed, boundary+got, err)
		}
		break
	}
	if got == 0 {
		return nil, fmt.Errorf("%w: empty read at %d", ErrReadFailed, boundary)
	}

	c.log.Debug().
		Uint64("start", boundary).
		Uint64("frames", got).
		Msg("chunk loaded")

	return &streamChunk{start: boundary, frames: got, samples: samples}, nil
}

// noteFailureLocked учитывает неудачную подкачку и пишет в лог
// не чаще раза в секунду, чтобы не забить его повторами.
func (c *StreamCache) noteFailureLocked(boundary uint64, err error) {
	c.fails++
	c.lastErr = err
	if now := time.Now(); now.Sub(c.lastLog) >= time.Second {
		c.lastLog = now
		c.log.Warn().
			Uint64("chunk", boundary).
			Int("consecutive", c.fails).
			Err(err).
			Msg("chunk refill failed")
	}
}
