package spheresound

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrNoFile возвращают команды, которым нужен открытый файл.
var ErrNoFile = errors.New("no audio file open")

// State — состояние транспорта движка.
type State int32

const (
	StateIdle    State = iota // файл не открыт
	StateStopped              // файл открыт, позиция 0, не играем
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// session — всё, что относится к одному открытому файлу. Заменяется
// целиком при смене файла, чтобы аудиопоток видел либо старый набор,
// либо новый, но не смесь.
type session struct {
	reader  FileReader
	cache   *StreamCache
	info    FileInfo
	name    string
	routing []int // канал файла -> выходной канал (с учётом сквозного пропуска)
}

// Engine — движок воспроизведения. Аудиопоток вызывает Render на
// каждый буфер устройства; поток управления выполняет команды
// транспорта (transport.go) и читает снимки индикаторов. Общие поля
// разведены атомиками, поэтому Render не берёт блокировку движка.
type Engine struct {
	cfg    Config
	table  *ChannelMap
	log    zerolog.Logger
	meters *Meters

	sess    atomic.Pointer[session]
	state   atomic.Int32
	pos     atomic.Uint64
	looping atomic.Bool
	gain    atomic.Uint32 // биты float32
	lastErr atomic.Pointer[error]

	// mu сериализует команды управления (открытие и закрытие файлов).
	// Render её никогда не берёт.
	mu       sync.Mutex
	files    []string
	selected int

	// maxima — рабочий буфер колбэка, его трогает только аудиопоток.
	maxima []float32
}

// NewEngine создаёт движок с данной таблицей маршрутизации.
// Таблица неизменяемая и передаётся один раз — никакого глобального
// состояния, которое можно было бы поменять на ходу.
func NewEngine(cfg Config, table *ChannelMap, log zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:    cfg,
		table:  table,
		log:    log,
		meters: NewMeters(cfg.OutputChannels, DecayFactor(cfg.MeterHalfLife, cfg.CallbackFrames, cfg.SampleRate), cfg.PeakHoldCallbacks),
		maxima: make([]float32, cfg.OutputChannels),
	}
	e.state.Store(int32(StateIdle))
	e.looping.Store(cfg.Loop)
	e.setGain(cfg.Gain)
	return e
}

// Render — рендер-колбэк: заполняет out ровно frames кадрами по
// outChannels семплов. Буфер устройства заполняется целиком всегда,
// чем бы ни закончился колбэк — паузой, концом файла или ошибкой чтения.
func (e *Engine) Render(out []float32, frames, outChannels int) {
	total := frames * outChannels
	if total > len(out) {
		total = len(out)
	}
	out = out[:total]
	for i := range out {
		out[i] = 0
	}

	sess := e.sess.Load()
	if sess == nil || State(e.state.Load()) != StatePlaying {
		// Нет файла или не играем: тишина, индикаторы не трогаем.
		return
	}

	info := sess.info
	pos := e.pos.Load()

	// Конец файла оцениваем только на входе в колбэк. Если цикл
	// пересёк конец в середине прошлого буфера, его хвост остался
	// тишиной, а нулевой кадр начнётся здесь.
	if pos >= info.TotalFrames {
		if e.looping.Load() {
			pos = 0
			e.pos.Store(0)
		} else {
			e.pos.Store(0)
			e.state.Store(int32(StateStopped))
			return
		}
	}

	renderFrames := uint64(frames)
	if pos+renderFrames > info.TotalFrames {
		renderFrames = info.TotalFrames - pos
	}

	gain := e.Gain()
	if cap(e.maxima) < outChannels {
		e.maxima = make([]float32, outChannels)
	}
	maxima := e.maxima[:outChannels]
	for i := range maxima {
		maxima[i] = 0
	}

	rendered := renderFrames
	for i := uint64(0); i < renderFrames; i++ {
		if err := sess.cache.Ensure(pos + i); err != nil {
			// Чанк не готов или не прочитался: остаток колбэка —
			// тишина, позиция не продвигается дальше прочитанного.
			e.handleStreamError(sess, err)
			rendered = i
			break
		}
		frame, err := sess.cache.Frame(pos + i)
		if err != nil {
			e.handleStreamError(sess, err)
			rendered = i
			break
		}

		base := int(i) * outChannels
		for fc := 0; fc < info.Channels; fc++ {
			dest := sess.routing[fc]
			if dest >= outChannels {
				// Выход за пределами устройства — семпл отбрасываем.
				continue
			}
			s := frame[fc]
			if !isFinite(s) {
				s = 0
			}
			v := s * gain
			out[base+dest] = v
			if a := abs32(v); a > maxima[dest] {
				maxima[dest] = a
			}
		}
	}

	e.pos.Store(pos + rendered)
	e.meters.Observe(maxima)

	// Перед точкой зацикливания заранее просим кэш вернуть в память
	// нулевой чанк, чтобы переход на начало обошёлся без паузы.
	if e.looping.Load() {
		lead := e.cfg.ChunkFrames() / 4
		if remaining := info.TotalFrames - (pos + rendered); remaining <= lead {
			sess.cache.Prefetch(0)
		}
	}
}

// handleStreamError переводит ошибку подкачки в "деградацию с тишиной"
// и останавливает воспроизведение, если подряд неудач слишком много.
// Через границу аудио-колбэка ошибки никогда не пробрасываются.
func (e *Engine) handleStreamError(sess *session, err error) {
	if errors.Is(err, ErrOutOfWindow) {
		// Нарушение внутреннего контракта, а не сбой ввода-вывода.
		e.log.Error().Err(err).Msg("stream cache contract violated")
		return
	}
	if sess.cache.Fails() >= e.cfg.ReadFailLimit {
		stopErr := fmt.Errorf("playback stopped after %d failed chunk reads: %w", e.cfg.ReadFailLimit, err)
		e.lastErr.Store(&stopErr)
		e.state.Store(int32(StateStopped))
		e.log.Error().Err(stopErr).Msg("giving up on stream")
	}
}

// loadSession открывает новую сессию поверх готового FileReader и
// закрывает предыдущую. resume сохраняет намерение "играть", если оно
// было; по умолчанию новый файл стартует остановленным.
func (e *Engine) loadSession(r FileReader, name string, resume bool) error {
	info := r.Info()
	wasPlaying := State(e.state.Load()) == StatePlaying

	// На время подмены воспроизведение останавливаем.
	e.state.Store(int32(StateStopped))

	if info.Channels != e.cfg.ExpectedFileChannels {
		// Не отказ: играем столько каналов, сколько есть в файле.
		e.log.Warn().
			Int("expected", e.cfg.ExpectedFileChannels).
			Int("actual", info.Channels).
			Str("file", name).
			Msg("channel count mismatch")
	}

	cache, err := NewStreamCache(r, e.cfg.ChunkFrames(), e.cfg.SyncRefill, e.log)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}

	// Маршрут каждого канала файла считаем один раз: запись из таблицы,
	// а при её отсутствии — сквозной проход на одноимённый выход.
	routing := make([]int, info.Channels)
	for fc := range routing {
		if o, ok := e.table.Route(fc); ok {
			routing[fc] = o
		} else {
			routing[fc] = fc
		}
	}

	sess := &session{reader: r, cache: cache, info: info, name: name, routing: routing}
	old := e.sess.Swap(sess)
	e.pos.Store(0)
	e.lastErr.Store(nil)
	e.meters.Reset()
	if resume && wasPlaying {
		e.state.Store(int32(StatePlaying))
	}

	if old != nil {
		// Сначала гасим подкачку (Close дожидается фоновой загрузки),
		// и только потом закрываем файл.
		old.cache.Close()
		old.reader.Close()
	}

	e.log.Info().
		Str("file", name).
		Int("channels", info.Channels).
		Int("rate", info.SampleRate).
		Uint64("frames", info.TotalFrames).
		Float64("seconds", info.Duration()).
		Msg("audio file loaded")
	return nil
}

func (e *Engine) setGain(g float32) {
	e.gain.Store(float32bits(clamp01(g)))
}

// Gain возвращает текущую громкость.
func (e *Engine) Gain() float32 {
	return float32frombits(e.gain.Load())
}
