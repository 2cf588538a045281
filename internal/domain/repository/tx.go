package repository

// Tx es el manejador explícito de una transacción abierta: todos los repositorios
// que devuelve operan dentro de ella y sus bloqueos duran hasta Commit/Rollback.
type Tx interface {
	Warehouses() WarehouseRepository
	Products() ProductRepository
	Kits() KitRepository
	Stock() StockRepository
	Lots() LotRepository
	Serials() SerialUnitRepository
	Movements() InventoryMovementRepository
	// AfterCommit registra fn para ejecutarse solo si la transacción confirma.
	AfterCommit(fn func())
}
