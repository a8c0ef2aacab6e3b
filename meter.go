package spheresound

import (
	"math"
	"sync"
	"time"
)

// MeterFloorDB — нижняя граница отображаемого уровня. Всё, что тише,
// прижимается к ней; точный ноль остаётся -Inf ("тишина").
const MeterFloorDB = -60.0

// DefaultMeterHalfLife — период полураспада индикаторов уровня.
// Подобран так, чтобы при колбэке 512 кадров на 48 кГц множитель
// спада за колбэк был ~0.95 (значение, под которое настроены шкалы).
const DefaultMeterHalfLife = 144 * time.Millisecond

// DecayFactor переводит период полураспада в множитель спада за один
// колбэк данной длины. Сам множитель зависит от размера колбэка —
// эта зависимость сознательная, поэтому фиксируем её здесь, в одном месте.
func DecayFactor(halfLife time.Duration, callbackFrames, sampleRate int) float32 {
	if halfLife <= 0 || callbackFrames <= 0 || sampleRate <= 0 {
		return 0
	}
	callbackSec := float64(callbackFrames) / float64(sampleRate)
	return float32(math.Exp2(-callbackSec / halfLife.Seconds()))
}

// MeterLevel — снимок индикатора одного выходного канала.
// Значения линейные; перевод в децибелы — забота отображения.
type MeterLevel struct {
	Level float32
	Peak  float32
}

func (l MeterLevel) LevelDB() float64 { return AmplitudeDB(l.Level) }

func (l MeterLevel) PeakDB() float64 { return AmplitudeDB(l.Peak) }

// AmplitudeDB переводит линейную амплитуду в децибелы с полом
// MeterFloorDB. Для точного нуля возвращает -Inf.
func AmplitudeDB(a float32) float64 {
	if a <= 0 {
		return math.Inf(-1)
	}
	db := 20 * math.Log10(float64(a))
	if db < MeterFloorDB {
		return MeterFloorDB
	}
	return db
}

// Meters ведёт уровень и пиковое значение по каждому выходному каналу.
// Observe вызывается аудиопотоком раз за колбэк, Snapshot — потоком
// интерфейса; короткий мьютекс разводит их без гонок.
type Meters struct {
	mu    sync.Mutex
	level []float32
	peak  []float32
	hold  []int

	decay         float32 // множитель спада за колбэк
	holdCallbacks int     // сколько колбэков удерживать пик
}

func NewMeters(channels int, decay float32, holdCallbacks int) *Meters {
	return &Meters{
		level:         make([]float32, channels),
		peak:          make([]float32, channels),
		hold:          make([]int, channels),
		decay:         decay,
		holdCallbacks: holdCallbacks,
	}
}

// Channels возвращает число каналов, под которое рассчитаны индикаторы.
func (m *Meters) Channels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.level)
}

// Reset обнуляет все индикаторы (например, при смене файла).
func (m *Meters) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.level {
		m.level[i] = 0
		m.peak[i] = 0
		m.hold[i] = 0
	}
}

// Observe принимает максимумы модуля семпла по каналам за один колбэк.
// Нефинитные значения считаются нулём: уровень и пик никогда не NaN
// и не уходят в минус.
func (m *Meters) Observe(maxima []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.level)
	if len(maxima) < n {
		n = len(maxima)
	}
	for ch := 0; ch < n; ch++ {
		v := maxima[ch]
		if !isFinite(v) || v < 0 {
			v = 0
		}

		// Спад применяется один раз за колбэк, новый максимум
		// перекрывает спавшее значение.
		m.level[ch] *= m.decay
		if v > m.level[ch] {
			m.level[ch] = v
		}

		if v > m.peak[ch] {
			m.peak[ch] = v
			m.hold[ch] = m.holdCallbacks
		} else if m.hold[ch] > 0 {
			m.hold[ch]--
		} else {
			m.peak[ch] *= m.decay
		}
	}
}

// Snapshot возвращает копию текущих показаний для отображения.
func (m *Meters) Snapshot() []MeterLevel {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MeterLevel, len(m.level))
	for ch := range out {
		out[ch] = MeterLevel{Level: m.level[ch], Peak: m.peak[ch]}
	}
	return out
}
