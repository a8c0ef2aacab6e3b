// Команда spheresound проигрывает многоканальный аудиофайл на динамики
// сферы, раскладывая каналы файла по таблице маршрутизации.
//
// Управление с клавиатуры:
//
//	пробел — play/pause, s — stop, r — перемотка на начало,
//	l — цикл, +/- — громкость, 1..9 — выбор файла,
//	m — индикаторы уровня, q — выход.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/Roman77St/spheresound"
)

func main() {
	var (
		dir      = flag.String("dir", "sourceAudio", "папка с аудиофайлами")
		rate     = flag.Int("rate", 48000, "частота дискретизации устройства, Гц")
		outs     = flag.Int("out", 60, "число выходных каналов устройства")
		expected = flag.Int("expected", 56, "ожидаемое число каналов в файле")
		buffer   = flag.Int("buffer", 512, "кадров на рендер-колбэк")
		chunk    = flag.Int("chunk", 60, "размер чанка подкачки, секунд")
		syncIO   = flag.Bool("sync", false, "синхронная подкачка чанков (без фоновой горутины)")
		gain     = flag.Float64("gain", 0.5, "стартовая громкость [0..1]")
		file     = flag.Int("file", 1, "номер файла для старта (1 — первый)")
		meters   = flag.Bool("meters", true, "показывать индикаторы уровня")
		verbose  = flag.Bool("v", false, "подробный лог")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	cfg := spheresound.DefaultConfig()
	cfg.AudioFolder = *dir
	cfg.SampleRate = *rate
	cfg.OutputChannels = *outs
	cfg.ExpectedFileChannels = *expected
	cfg.CallbackFrames = *buffer
	cfg.ChunkSeconds = *chunk
	cfg.SyncRefill = *syncIO
	cfg.Gain = float32(*gain)

	engine := spheresound.NewEngine(cfg, spheresound.DefaultMap(), log)
	defer engine.Close()

	if err := engine.ScanFolder(); err != nil {
		log.Fatal().Err(err).Str("folder", *dir).Msg("cannot scan audio folder")
	}
	files := engine.Files()
	if len(files) == 0 {
		log.Fatal().Str("folder", *dir).Msg("no audio files found")
	}
	for i, name := range files {
		fmt.Printf("  [%d] %s\n", i+1, name)
	}

	if err := engine.SelectFile(*file-1, false); err != nil {
		log.Fatal().Err(err).Msg("cannot open audio file")
	}

	out, err := spheresound.NewOutput(engine, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open audio device")
	}
	defer out.Close()
	out.Start()

	// Сырой режим терминала: команды срабатывают без Enter.
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatal().Err(err).Msg("cannot switch terminal to raw mode")
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	keys := make(chan byte, 8)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				close(keys)
				return
			}
			keys <- buf[0]
		}
	}()

	showMeters := *meters
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	var lastLines int

	for {
		select {
		case key, ok := <-keys:
			if !ok {
				return
			}
			switch {
			case key == 'q' || key == 3: // ctrl-C
				fmt.Print("\r\n")
				return
			case key == ' ':
				if err := engine.TogglePlay(); err != nil {
					log.Warn().Err(err).Msg("cannot start playback")
				}
			case key == 's':
				engine.Stop()
			case key == 'r':
				engine.Rewind()
			case key == 'l':
				engine.SetLoop(!engine.Looping())
			case key == '+' || key == '=':
				engine.SetGain(engine.Gain() + 0.05)
			case key == '-':
				engine.SetGain(engine.Gain() - 0.05)
			case key == 'm':
				showMeters = !showMeters
				lastLines = 0
				fmt.Print("\033[2J\033[H")
			case key >= '1' && key <= '9':
				idx := int(key - '1')
				if err := engine.SelectFile(idx, true); err != nil {
					log.Warn().Err(err).Int("index", idx+1).Msg("cannot select file")
				}
			}
		case <-ticker.C:
			lastLines = draw(engine, showMeters, lastLines)
			if err := engine.LastError(); err != nil {
				log.Error().Err(err).Msg("playback error")
			}
		}
	}
}

// draw перерисовывает строку состояния и, если включено, столбик
// индикаторов. Возвращает число занятых строк, чтобы следующий кадр
// поднял курсор ровно на их высоту.
func draw(e *spheresound.Engine, showMeters bool, lastLines int) int {
	if lastLines > 0 {
		fmt.Printf("\033[%dA", lastLines)
	}

	_, name, err := e.Info()
	if err != nil {
		name = "-"
	}
	loop := "off"
	if e.Looping() {
		loop = "on"
	}
	fmt.Printf("\r\033[K%s  %s  %s / %s  gain %.2f  loop %s\r\n",
		e.State(), name,
		spheresound.FormatTime(e.PositionSeconds()),
		spheresound.FormatTime(e.DurationSeconds()),
		e.Gain(), loop)
	lines := 1

	if showMeters {
		for ch, m := range e.MeterSnapshot() {
			fmt.Printf("\r\033[K%2d %s %s\r\n", ch+1, bar(m.LevelDB()), formatDB(m.PeakDB()))
			lines++
		}
	}
	return lines
}

// bar рисует шкалу от -60 дБ до 0 дБ шириной 30 знаков.
func bar(db float64) string {
	const width = 30
	norm := (db + 60) / 60
	if math.IsInf(db, -1) || norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	fill := int(norm * width)
	return "[" + strings.Repeat("#", fill) + strings.Repeat(" ", width-fill) + "]"
}

func formatDB(db float64) string {
	if math.IsInf(db, -1) {
		return "  -inf"
	}
	return fmt.Sprintf("%6.1f", db)
}
