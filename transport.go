package spheresound

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrBadSelection — индекс файла за пределами списка.
var ErrBadSelection = errors.New("file index out of range")

// Команды транспорта. Их вызывает поток управления (клавиатура, UI);
// аудиопоток видит изменения через атомики и никогда здесь не блокируется.

// Play запускает воспроизведение из остановленного состояния или паузы.
func (e *Engine) Play() error {
	if e.sess.Load() == nil {
		return ErrNoFile
	}
	e.state.Store(int32(StatePlaying))
	return nil
}

// Pause приостанавливает воспроизведение, сохраняя позицию.
func (e *Engine) Pause() {
	e.state.CompareAndSwap(int32(StatePlaying), int32(StatePaused))
}

// TogglePlay переключает play/pause одной командой (клавиша "пробел").
func (e *Engine) TogglePlay() error {
	switch e.State() {
	case StatePlaying:
		e.Pause()
		return nil
	default:
		return e.Play()
	}
}

// Stop останавливает воспроизведение и возвращает позицию на начало.
func (e *Engine) Stop() {
	if e.sess.Load() == nil {
		return
	}
	e.state.Store(int32(StateStopped))
	e.pos.Store(0)
}

// Rewind перематывает на начало. Если сейчас играем — играем дальше
// с нулевого кадра.
func (e *Engine) Rewind() {
	e.pos.Store(0)
	if s := e.sess.Load(); s != nil {
		s.cache.Prefetch(0)
	}
}

// SetLoop включает или выключает зацикливание.
func (e *Engine) SetLoop(on bool) {
	e.looping.Store(on)
}

// Looping возвращает текущий режим зацикливания.
func (e *Engine) Looping() bool { return e.looping.Load() }

// SetGain задаёт громкость, прижимая её к [0, 1].
func (e *Engine) SetGain(g float32) {
	e.setGain(g)
}

// State возвращает текущее состояние транспорта.
func (e *Engine) State() State { return State(e.state.Load()) }

// Position — текущая позиция в кадрах.
func (e *Engine) Position() uint64 { return e.pos.Load() }

// PositionSeconds и DurationSeconds — то же в секундах, для отображения.
func (e *Engine) PositionSeconds() float64 {
	s := e.sess.Load()
	if s == nil {
		return 0
	}
	return framesToSeconds(e.pos.Load(), s.info.SampleRate)
}

func (e *Engine) DurationSeconds() float64 {
	s := e.sess.Load()
	if s == nil {
		return 0
	}
	return s.info.Duration()
}

// Info возвращает параметры открытого файла и его имя.
func (e *Engine) Info() (FileInfo, string, error) {
	s := e.sess.Load()
	if s == nil {
		return FileInfo{}, "", ErrNoFile
	}
	return s.info, s.name, nil
}

// MeterSnapshot — снимок индикаторов уровня для отображения.
func (e *Engine) MeterSnapshot() []MeterLevel {
	return e.meters.Snapshot()
}

// LastError возвращает последнюю ошибку аудиопотока (например, отказ
// подкачки): сами ошибки через границу колбэка не пробрасываются.
func (e *Engine) LastError() error {
	if p := e.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// ScanFolder перечитывает список файлов в настроенной папке.
func (e *Engine) ScanFolder() error {
	files, err := ScanAudioFiles(e.cfg.AudioFolder)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.files = files
	if e.selected >= len(files) {
		e.selected = 0
	}
	e.mu.Unlock()
	e.log.Info().Int("count", len(files)).Str("folder", e.cfg.AudioFolder).Msg("audio files found")
	return nil
}

// Files возвращает копию текущего списка файлов.
func (e *Engine) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.files...)
}

// SelectedIndex — индекс выбранного файла в списке.
func (e *Engine) SelectedIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// SelectFile открывает файл из списка по индексу: останавливает текущее
// воспроизведение, закрывает старый файл, открывает новый и сбрасывает
// позицию и кэш. При resume=true прежнее намерение "играть" сохраняется,
// иначе новый файл стартует остановленным.
func (e *Engine) SelectFile(index int, resume bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.files) {
		return fmt.Errorf("%w: %d of %d", ErrBadSelection, index, len(e.files))
	}
	name := e.files[index]

	r, err := OpenFile(filepath.Join(e.cfg.AudioFolder, name))
	if err != nil {
		// Файл не открылся — движок остаётся в прежнем состоянии.
		return fmt.Errorf("open %s: %w", name, err)
	}
	if err := e.loadSession(r, name, resume); err != nil {
		r.Close()
		return err
	}
	e.selected = index
	return nil
}

// LoadPath открывает произвольный файл, минуя список.
func (e *Engine) LoadPath(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := OpenFile(path)
	if err != nil {
		return err
	}
	if err := e.loadSession(r, filepath.Base(path), false); err != nil {
		r.Close()
		return err
	}
	return nil
}

// Close закрывает открытый файл и переводит движок в Idle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.sess.Swap(nil)
	e.state.Store(int32(StateIdle))
	e.pos.Store(0)
	if old == nil {
		return nil
	}
	old.cache.Close()
	return old.reader.Close()
}
