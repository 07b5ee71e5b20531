// Package pricing реализует чистый расчёт стоимости напитка по статическим
// таблицам цен: цена за чашку с детализацией, прогноз расходов по горизонтам
// и расчёт оптовой партии. Пакет не имеет состояния и ничего не хранит.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownSelection возвращается при неизвестной комбинации
// категории, стиля и размера напитка.
var ErrUnknownSelection = errors.New("unknown drink selection")

// avgWeeksPerMonth — усреднённое число недель в месяце.
// Сознательное приближение, а не календарный месяц.
const avgWeeksPerMonth = 4.33

const weeksPerYear = 52

// Selection описывает рецепт напитка, введённый пользователем.
// Количества должны быть неотрицательными: граничный слой обрезает
// отрицательные значения до нуля ещё до вызова расчёта.
type Selection struct {
	Category string
	Style    string
	Size     string
	SugarTsp float64
	CreamOz  float64
	MilkOz   float64
	Whipped  bool
	Shots    int
}

// Quote содержит цену за чашку и детализацию по компонентам.
// Каждая строка детализации округлена до центов независимо;
// итог не выводится обратным делением из суммы строк.
type Quote struct {
	PricePerCup float64
	Breakdown   map[string]float64
}

// Projection содержит прогноз расходов на неделю, месяц и год.
type Projection struct {
	Weekly  float64
	Monthly float64
	Yearly  float64
}

// BulkQuote содержит стоимость оптовой партии и её детализацию.
type BulkQuote struct {
	Quantity  int
	Total     float64
	Breakdown map[string]float64
}

// round2 округляет денежную величину до центов по правилу half-up
// (ровно половина цента округляется от нуля). Все денежные значения
// пакета проходят через эту функцию по отдельности.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BasePrice возвращает базовую цену чашки для указанной комбинации.
func BasePrice(category, style, size string) (float64, error) {
	styles, ok := basePrices[category]
	if !ok {
		return 0, fmt.Errorf("%w: category %q", ErrUnknownSelection, category)
	}
	sizes, ok := styles[style]
	if !ok {
		return 0, fmt.Errorf("%w: style %q", ErrUnknownSelection, style)
	}
	price, ok := sizes[size]
	if !ok {
		return 0, fmt.Errorf("%w: size %q", ErrUnknownSelection, size)
	}
	return price, nil
}

// Compute рассчитывает цену за чашку и детализацию по компонентам.
func Compute(sel Selection) (Quote, error) {
	base, err := BasePrice(sel.Category, sel.Style, sel.Size)
	if err != nil {
		return Quote{}, err
	}

	whipped := 0.0
	if sel.Whipped {
		whipped = whippedFlat
	}
	shots := float64(sel.Shots) * shotEach

	addons := sel.SugarTsp*sugarPerTsp + sel.CreamOz*creamPerOz + sel.MilkOz*milkPerOz + whipped + shots

	return Quote{
		PricePerCup: round2(base + addons),
		Breakdown: map[string]float64{
			"Base drink":     round2(base),
			"Sugar":          round2(sel.SugarTsp * sugarPerTsp),
			"Cream":          round2(sel.CreamOz * creamPerOz),
			"Milk":           round2(sel.MilkOz * milkPerOz),
			"Whipped Cream":  whipped,
			"Espresso Shots": round2(shots),
		},
	}, nil
}

// Project прогнозирует расходы по горизонтам от цены за чашку
// и числа чашек в неделю.
func Project(pricePerCup float64, perWeek int) Projection {
	weekly := round2(pricePerCup * float64(perWeek))
	return Projection{
		Weekly:  weekly,
		Monthly: round2(weekly * avgWeeksPerMonth),
		Yearly:  round2(weekly * weeksPerYear),
	}
}

// ProjectBulk рассчитывает стоимость оптовой партии. Каждая строка
// детализации масштабируется от исходных (неокруглённых) компонент
// и округляется независимо, как и в единичной детализации.
func ProjectBulk(sel Selection, qty int) (BulkQuote, error) {
	quote, err := Compute(sel)
	if err != nil {
		return BulkQuote{}, err
	}

	base, _ := BasePrice(sel.Category, sel.Style, sel.Size)

	whipped := 0.0
	if sel.Whipped {
		whipped = whippedFlat
	}

	q := float64(qty)
	return BulkQuote{
		Quantity: qty,
		Total:    round2(quote.PricePerCup * q),
		Breakdown: map[string]float64{
			fmt.Sprintf("Base drink x%d", qty):     round2(base * q),
			fmt.Sprintf("Sugar x%d", qty):          round2(sel.SugarTsp * sugarPerTsp * q),
			fmt.Sprintf("Cream x%d", qty):          round2(sel.CreamOz * creamPerOz * q),
			fmt.Sprintf("Milk x%d", qty):           round2(sel.MilkOz * milkPerOz * q),
			fmt.Sprintf("Whipped Cream x%d", qty):  round2(whipped * q),
			fmt.Sprintf("Espresso Shots x%d", qty): round2(float64(sel.Shots) * shotEach * q),
		},
	}, nil
}
