package entity

// The catalogue taxonomy is a set of closed enumerations. Filter values that
// are not listed here are rejected at the validation boundary, never in SQL.
// Categories and cuisines carry the platform's display values as stored.

var Categories = newEnum(
	"Ресторан",
	"Кафе",
	"Бар",
	"Кофейня",
	"Пиццерия",
	"Фастфуд",
	"Столовая",
	"Кондитерская",
	"Паб",
)

var Cuisines = newEnum(
	"Белорусская",
	"Европейская",
	"Итальянская",
	"Грузинская",
	"Японская",
	"Азиатская",
	"Американская",
	"Восточная",
	"Мексиканская",
)

var PriceTiers = newEnum("$", "$$", "$$$", "$$$$")

var Features = newEnum(
	"delivery",
	"takeaway",
	"wifi",
	"parking",
	"terrace",
	"kids_room",
	"live_music",
	"card_payment",
	"reservation",
)

var HoursWindows = newEnum("morning", "afternoon", "evening", "late_night")

// Enum is an immutable membership set preserving declaration order.
type Enum struct {
	values []string
	index  map[string]struct{}
}

func newEnum(values ...string) Enum {
	index := make(map[string]struct{}, len(values))
	for _, v := range values {
		index[v] = struct{}{}
	}
	return Enum{values: values, index: index}
}

// Contains reports whether the value belongs to the enumeration.
func (e Enum) Contains(value string) bool {
	_, ok := e.index[value]
	return ok
}

// Values returns the declared members in order.
func (e Enum) Values() []string {
	out := make([]string, len(e.values))
	copy(out, e.values)
	return out
}
