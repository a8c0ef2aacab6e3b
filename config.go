package spheresound

import "time"

// Config — настройки сеанса воспроизведения. Заполняется один раз на
// старте; на лету меняются только громкость и цикл (через команды
// движка), остальное требует переоткрытия файла.
type Config struct {
	SampleRate           int           // частота устройства, Гц
	OutputChannels       int           // сколько физических выходов у устройства
	ExpectedFileChannels int           // сколько каналов ожидаем в файле (несовпадение — предупреждение)
	CallbackFrames       int           // кадров на один рендер-колбэк
	ChunkSeconds         int           // размер чанка потоковой подкачки, секунд звука
	MeterHalfLife        time.Duration // период полураспада индикаторов уровня
	PeakHoldCallbacks    int           // сколько колбэков удерживать пиковое значение
	SyncRefill           bool          // подкачивать чанки синхронно, без фоновой горутины
	ReadFailLimit        int           // после скольких подряд неудачных подкачек останавливать воспроизведение
	Gain                 float32       // стартовая громкость [0, 1]
	Loop                 bool          // зацикливание по умолчанию
	AudioFolder          string        // папка с аудиофайлами
}

// DefaultConfig возвращает настройки по умолчанию: 60 выходов сферы,
// 56-канальные файлы, минутные чанки на 48 кГц.
func DefaultConfig() Config {
	return Config{
		SampleRate:           48000,
		OutputChannels:       60,
		ExpectedFileChannels: 56,
		CallbackFrames:       512,
		ChunkSeconds:         60,
		MeterHalfLife:        DefaultMeterHalfLife,
		PeakHoldCallbacks:    24,
		ReadFailLimit:        8,
		Gain:                 0.5,
		Loop:                 true,
		AudioFolder:          "sourceAudio",
	}
}

// withDefaults подставляет значения по умолчанию вместо нулевых полей
// и приводит громкость к допустимому диапазону.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.OutputChannels <= 0 {
		c.OutputChannels = def.OutputChannels
	}
	if c.ExpectedFileChannels <= 0 {
		c.ExpectedFileChannels = def.ExpectedFileChannels
	}
	if c.CallbackFrames <= 0 {
		c.CallbackFrames = def.CallbackFrames
	}
	if c.ChunkSeconds <= 0 {
		c.ChunkSeconds = def.ChunkSeconds
	}
	if c.MeterHalfLife <= 0 {
		c.MeterHalfLife = def.MeterHalfLife
	}
	if c.PeakHoldCallbacks <= 0 {
		c.PeakHoldCallbacks = def.PeakHoldCallbacks
	}
	if c.ReadFailLimit <= 0 {
		c.ReadFailLimit = def.ReadFailLimit
	}
	c.Gain = clamp01(c.Gain)
	return c
}

// ChunkFrames — размер чанка в кадрах.
func (c Config) ChunkFrames() uint64 {
	return uint64(c.ChunkSeconds) * uint64(c.SampleRate)
}
