package spheresound

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Output — мост между движком и звуковым устройством. oto работает по
// модели pull: плеер сам читает данные через Read, а мы превращаем
// каждый такой вызов в один рендер-колбэк движка.
type Output struct {
	ctx      *oto.Context
	player   *oto.Player
	engine   *Engine
	channels int
	buf      []float32 // заранее выделенный буфер, чтобы не аллоцировать в Read
}

// NewOutput инициализирует устройство вывода под настройки сеанса
// и подключает к нему движок.
func NewOutput(e *Engine, cfg Config) (*Output, error) {
	cfg = cfg.withDefaults()
	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.OutputChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Second * time.Duration(cfg.CallbackFrames) / time.Duration(cfg.SampleRate),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	o := &Output{
		ctx:      ctx,
		engine:   e,
		channels: cfg.OutputChannels,
		buf:      make([]float32, cfg.CallbackFrames*cfg.OutputChannels),
	}
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// Read вызывается плеером oto, когда устройству нужны данные.
// Размер запроса не обязан совпадать с настроенным размером колбэка,
// поэтому число кадров каждый раз считаем из len(p).
func (o *Output) Read(p []byte) (int, error) {
	const bytesPerSample = 4 // float32 LE
	frames := len(p) / bytesPerSample / o.channels
	if frames == 0 {
		return 0, nil
	}

	samples := frames * o.channels
	if cap(o.buf) < samples {
		o.buf = make([]float32, samples)
	}
	buf := o.buf[:samples]

	o.engine.Render(buf, frames, o.channels)

	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(s))
	}
	return samples * bytesPerSample, nil
}

// Start запускает поток вывода: с этого момента устройство начинает
// дёргать Read.
func (o *Output) Start() {
	o.player.Play()
}

// Close останавливает вывод и освобождает плеер.
func (o *Output) Close() error {
	return o.player.Close()
}
