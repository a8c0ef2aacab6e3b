package spheresound

import "fmt"

// Pair описывает одну строку таблицы маршрутизации:
// канал аудиофайла -> физический выход (динамик).
type Pair struct {
	File   int // канал в файле
	Output int // канал на выходе устройства
}

// ChannelMap — неизменяемая таблица переназначения каналов.
// Для скорости храним два плотных массива: прямой (файл -> выход)
// и обратный (выход -> файл). Значение -1 означает "записи нет".
type ChannelMap struct {
	pairs   []Pair
	forward []int
	inverse []int
}

// NewChannelMap строит таблицу из списка пар и проверяет её корректность:
// индексы не могут быть отрицательными, а канал файла не может
// встречаться дважды.
func NewChannelMap(pairs []Pair) (*ChannelMap, error) {
	maxFile, maxOut := 0, 0
	for _, p := range pairs {
		if p.File < 0 || p.Output < 0 {
			return nil, fmt.Errorf("channel map: negative index in pair {%d, %d}", p.File, p.Output)
		}
		if p.File > maxFile {
			maxFile = p.File
		}
		if p.Output > maxOut {
			maxOut = p.Output
		}
	}

	m := &ChannelMap{
		pairs:   append([]Pair(nil), pairs...),
		forward: make([]int, maxFile+1),
		inverse: make([]int, maxOut+1),
	}
	for i := range m.forward {
		m.forward[i] = -1
	}
	for i := range m.inverse {
		m.inverse[i] = -1
	}

	for _, p := range pairs {
		if m.forward[p.File] != -1 {
			return nil, fmt.Errorf("channel map: duplicate entry for file channel %d", p.File)
		}
		m.forward[p.File] = p.Output
		// Обратная таблица нужна только там, где отображение инъективно;
		// первая запись побеждает.
		if m.inverse[p.Output] == -1 {
			m.inverse[p.Output] = p.File
		}
	}
	return m, nil
}

// Route возвращает выходной канал для канала файла.
// Если записи в таблице нет, второй результат — false.
func (m *ChannelMap) Route(fileCh int) (int, bool) {
	if fileCh < 0 || fileCh >= len(m.forward) || m.forward[fileCh] == -1 {
		return 0, false
	}
	return m.forward[fileCh], true
}

// Inverse возвращает канал файла, назначенный на данный выход.
func (m *ChannelMap) Inverse(outputCh int) (int, bool) {
	if outputCh < 0 || outputCh >= len(m.inverse) || m.inverse[outputCh] == -1 {
		return 0, false
	}
	return m.inverse[outputCh], true
}

// Pairs возвращает копию исходного списка пар (для отображения и тестов).
func (m *ChannelMap) Pairs() []Pair {
	return append([]Pair(nil), m.pairs...)
}

// Len — количество записей в таблице.
func (m *ChannelMap) Len() int { return len(m.pairs) }

// ToOneIndexed и ToZeroIndexed переводят номер канала между двумя
// соглашениями нумерации. Это чистая арифметика, а не поиск по таблице.
func ToOneIndexed(zeroIndexed int) int { return zeroIndexed + 1 }

func ToZeroIndexed(oneIndexed int) int { return oneIndexed - 1 }

// Раскладка динамиков сферы (54 динамика + сабвуфер):
//   - верхнее кольцо (12): выходы 0-11
//   - среднее кольцо (30): выходы 16-45 (выходы 12-15 пропущены)
//   - нижнее кольцо (12):  выходы 48-59 (выходы 46-47 пропущены)
//   - последний канал файла (55) уходит на сабвуфер, выход 47.
var defaultPairs = []Pair{
	// верхнее кольцо
	{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5},
	{6, 6}, {7, 7}, {8, 8}, {9, 9}, {10, 10}, {11, 11},
	// среднее кольцо
	{12, 16}, {13, 17}, {14, 18}, {15, 19}, {16, 20}, {17, 21},
	{18, 22}, {19, 23}, {20, 24}, {21, 25}, {22, 26}, {23, 27},
	{24, 28}, {25, 29}, {26, 30}, {27, 31}, {28, 32}, {29, 33},
	{30, 34}, {31, 35}, {32, 36}, {33, 37}, {34, 38}, {35, 39},
	{36, 40}, {37, 41}, {38, 42}, {39, 43}, {40, 44}, {41, 45},
	// нижнее кольцо
	{42, 48}, {43, 49}, {44, 50}, {45, 51}, {46, 52}, {47, 53},
	{48, 54}, {49, 55}, {50, 56}, {51, 57}, {52, 58}, {53, 59},
	// сабвуфер
	{55, 47},
}

// oneIndexedPairs — та же таблица в нумерации с единицы. Совпадает
// с раскладкой динамиков из документации зала, где каналы считают с 1.
var oneIndexedPairs = []Pair{
	// верхнее кольцо
	{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 6},
	{7, 7}, {8, 8}, {9, 9}, {10, 10}, {11, 11}, {12, 12},
	// среднее кольцо
	{13, 17}, {14, 18}, {15, 19}, {16, 20}, {17, 21}, {18, 22},
	{19, 23}, {20, 24}, {21, 25}, {22, 26}, {23, 27}, {24, 28},
	{25, 29}, {26, 30}, {27, 31}, {28, 32}, {29, 33}, {30, 34},
	{31, 35}, {32, 36}, {33, 37}, {34, 38}, {35, 39}, {36, 40},
	{37, 41}, {38, 42}, {39, 43}, {40, 44}, {41, 45}, {42, 46},
	// нижнее кольцо
	{43, 49}, {44, 50}, {45, 51}, {46, 52}, {47, 53}, {48, 54},
	{49, 55}, {50, 56}, {51, 57}, {52, 58}, {53, 59}, {54, 60},
	// сабвуфер
	{56, 48},
}

var (
	defaultMap    = mustChannelMap(defaultPairs)
	oneIndexedMap = mustChannelMap(oneIndexedPairs)
)

// DefaultMap возвращает стандартную таблицу в нумерации с нуля —
// её использует движок для индексации буферов.
func DefaultMap() *ChannelMap { return defaultMap }

// OneIndexedMap возвращает вариант таблицы в нумерации с единицы.
func OneIndexedMap() *ChannelMap { return oneIndexedMap }

func mustChannelMap(pairs []Pair) *ChannelMap {
	m, err := NewChannelMap(pairs)
	if err != nil {
		panic(err)
	}
	return m
}
