package constants

// Параметры обхода по умолчанию, когда запрос их не задает
const (
	DefaultLookbackDays = 14
	DefaultPageLimit    = 50
)
