package matching

// Policy — калиброванные пороги принятия решения о совпадении постов
// по фотографиям. Значения по умолчанию подобраны на ручной разметке пар.
type Policy struct {
	// ExactThreshold — сколько пар изображений с полным консенсусом
	// компараторов достаточно для совпадения.
	ExactThreshold int

	// ConfidentThreshold — сколько уверенных пар достаточно для совпадения.
	ConfidentThreshold int

	// MaybeThreshold — сколько слабых сигналов достаточно для совпадения.
	MaybeThreshold int

	// RelaxDelta — на сколько смягчается каждый порог, когда посты
	// подтверждают друг друга текстовыми атрибутами.
	RelaxDelta int

	// FuzzyPriceMargin — относительное отклонение цен, при котором цены
	// считаются "почти равными" для текстовой корроборации.
	FuzzyPriceMargin float64
}

// DefaultPolicy возвращает стандартные пороги.
func DefaultPolicy() Policy {
	return Policy{
		ExactThreshold:     2,
		ConfidentThreshold: 2,
		MaybeThreshold:     4,
		RelaxDelta:         1,
		FuzzyPriceMargin:   0.05,
	}
}

// relaxed возвращает порог, смягченный на RelaxDelta, но не ниже 1.
func (p Policy) relaxed(threshold int) int {
	t := threshold - p.RelaxDelta
	if t < 1 {
		t = 1
	}
	return t
}
