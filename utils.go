package spheresound

import (
	"fmt"
	"math"
)

// framesToSeconds переводит число кадров в секунды.
func framesToSeconds(frames uint64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(frames) / float64(sampleRate)
}

// clamp01 прижимает значение к диапазону [0, 1].
func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// isFinite проверяет, что семпл — нормальное число (не NaN и не Inf).
func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func float32bits(v float32) uint32 { return math.Float32bits(v) }

func float32frombits(b uint32) float32 { return math.Float32frombits(b) }

// FormatTime форматирует секунды как "м:сс" для строки состояния.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
