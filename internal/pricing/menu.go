package pricing

import "sort"

// basePrices — статическая таблица базовых цен: категория → стиль → размер.
// Таблица неизменяема после старта процесса, путей её мутации нет.
var basePrices = map[string]map[string]map[string]float64{
	"Hot Brew": {
		"Cappuccino": {"Small": 3.75, "Medium": 4.25, "Large": 4.75},
		"Latte":      {"Small": 3.95, "Medium": 4.45, "Large": 4.95},
		"Espresso":   {"Small": 2.25, "Medium": 2.75, "Large": 3.25},
	},
	"Cold Brew": {
		"Frappuccino": {"Small": 4.75, "Medium": 5.25, "Large": 5.95},
		"Iced Coffee": {"Small": 3.25, "Medium": 3.75, "Large": 4.25},
	},
}

// Ставки добавок. Whipped cream — фиксированная надбавка вне зависимости
// от количества, остальные тарифицируются за единицу.
const (
	sugarPerTsp = 0.10
	creamPerOz  = 0.25
	milkPerOz   = 0.20
	whippedFlat = 0.50
	shotEach    = 1.00
)

// Categories возвращает отсортированный список известных категорий.
func Categories() []string {
	res := make([]string, 0, len(basePrices))
	for c := range basePrices {
		res = append(res, c)
	}
	sort.Strings(res)
	return res
}

// Styles возвращает отсортированный список стилей категории.
// Для неизвестной категории возвращается пустой список.
func Styles(category string) []string {
	styles, ok := basePrices[category]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(styles))
	for s := range styles {
		res = append(res, s)
	}
	sort.Strings(res)
	return res
}

// Sizes возвращает отсортированный список размеров для пары категория/стиль.
func Sizes(category, style string) []string {
	styles, ok := basePrices[category]
	if !ok {
		return nil
	}
	sizes, ok := styles[style]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(sizes))
	for s := range sizes {
		res = append(res, s)
	}
	sort.Strings(res)
	return res
}

// Menu возвращает копии таблиц базовых цен и ставок добавок
// для отображения клиенту. Ключи ставок — человекочитаемые метки.
func Menu() (map[string]map[string]map[string]float64, map[string]float64) {
	base := make(map[string]map[string]map[string]float64, len(basePrices))
	for category, styles := range basePrices {
		base[category] = make(map[string]map[string]float64, len(styles))
		for style, sizes := range styles {
			base[category][style] = make(map[string]float64, len(sizes))
			for size, price := range sizes {
				base[category][style][size] = price
			}
		}
	}

	addons := map[string]float64{
		"Sugar (per teaspoon)": sugarPerTsp,
		"Cream (per oz)":       creamPerOz,
		"Milk (per oz)":        milkPerOz,
		"Whipped Cream (flat)": whippedFlat,
		"Espresso Shot (each)": shotEach,
	}

	return base, addons
}
