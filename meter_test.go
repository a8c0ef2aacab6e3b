package spheresound

import (
	"math"
	"testing"
	"time"
)

// Период полураспада по умолчанию должен давать прежний множитель 0.95
// на колбэке в 512 кадров при 48 кГц — под него настроены шкалы.
func TestDecayFactorDefault(t *testing.T) {
	got := DecayFactor(DefaultMeterHalfLife, 512, 48000)
	if math.Abs(float64(got)-0.95) > 0.001 {
		t.Errorf("DecayFactor = %v, want ~0.95", got)
	}
}

func TestDecayFactorDegenerate(t *testing.T) {
	if DecayFactor(0, 512, 48000) != 0 {
		t.Error("zero half-life must give zero factor")
	}
	if DecayFactor(time.Second, 0, 48000) != 0 {
		t.Error("zero callback must give zero factor")
	}
}

// Уровень спадает мультипликативно, новый максимум его перекрывает.
func TestLevelDecay(t *testing.T) {
	m := NewMeters(1, 0.9, 4)

	m.Observe([]float32{0.8})
	if got := m.Snapshot()[0].Level; got != 0.8 {
		t.Fatalf("level = %v, want 0.8", got)
	}

	m.Observe([]float32{0})
	if got := m.Snapshot()[0].Level; math.Abs(float64(got)-0.72) > 1e-6 {
		t.Errorf("level after one silent callback = %v, want 0.72", got)
	}

	// Более громкий максимум перекрывает спавший уровень сразу.
	m.Observe([]float32{0.9})
	if got := m.Snapshot()[0].Level; got != 0.9 {
		t.Errorf("level = %v, want 0.9", got)
	}
}

// Пик держится заданное число колбэков и только потом начинает спадать.
func TestPeakHoldWindow(t *testing.T) {
	const hold = 5
	m := NewMeters(1, 0.9, hold)

	m.Observe([]float32{0.5})
	for i := 0; i < hold; i++ {
		m.Observe([]float32{0})
		if got := m.Snapshot()[0].Peak; got != 0.5 {
			t.Fatalf("peak decayed on callback %d of the hold window: %v", i+1, got)
		}
	}

	m.Observe([]float32{0})
	if got := m.Snapshot()[0].Peak; got >= 0.5 {
		t.Errorf("peak = %v, must decay once the hold window elapsed", got)
	}
}

// Новый максимум во время удержания перезапускает окно.
func TestPeakHoldRestart(t *testing.T) {
	m := NewMeters(1, 0.9, 3)

	m.Observe([]float32{0.4})
	m.Observe([]float32{0})
	m.Observe([]float32{0.6}) // громче — окно начинается заново
	for i := 0; i < 3; i++ {
		m.Observe([]float32{0})
	}
	if got := m.Snapshot()[0].Peak; got != 0.6 {
		t.Errorf("peak = %v, want 0.6 for the full restarted window", got)
	}
}

// NaN и бесконечности трактуются как ноль: показания всегда конечны
// и неотрицательны.
func TestObserveNonFinite(t *testing.T) {
	m := NewMeters(3, 0.9, 4)
	m.Observe([]float32{float32(math.NaN()), float32(math.Inf(1)), -1})

	for ch, lvl := range m.Snapshot() {
		if !isFinite(lvl.Level) || lvl.Level < 0 || !isFinite(lvl.Peak) || lvl.Peak < 0 {
			t.Errorf("channel %d has bad meter values: %+v", ch, lvl)
		}
		if lvl.Level != 0 {
			t.Errorf("channel %d level = %v, want 0", ch, lvl.Level)
		}
	}
}

// Перевод в децибелы: пол -60 дБ, для точного нуля — "тишина" (-Inf).
func TestAmplitudeDB(t *testing.T) {
	tests := []struct {
		amp  float32
		want float64
	}{
		{1, 0},
		{0.5, 20 * math.Log10(0.5)},
		{0.0005, MeterFloorDB},
		{0, math.Inf(-1)},
	}
	for _, tt := range tests {
		got := AmplitudeDB(tt.amp)
		if math.IsInf(tt.want, -1) {
			if !math.IsInf(got, -1) {
				t.Errorf("AmplitudeDB(%v) = %v, want -Inf", tt.amp, got)
			}
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AmplitudeDB(%v) = %v, want %v", tt.amp, got, tt.want)
		}
	}
}

func TestMetersReset(t *testing.T) {
	m := NewMeters(2, 0.9, 4)
	m.Observe([]float32{0.7, 0.3})
	m.Reset()
	for ch, lvl := range m.Snapshot() {
		if lvl.Level != 0 || lvl.Peak != 0 {
			t.Errorf("channel %d not reset: %+v", ch, lvl)
		}
	}
}
