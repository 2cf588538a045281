package entity

// KitComponent indica que un kit contiene Multiplier unidades de un componente.
type KitComponent struct {
	KitProductID       string
	ComponentProductID string
	Multiplier         int
}
