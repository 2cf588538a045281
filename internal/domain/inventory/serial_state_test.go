package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
)

func unit(state string) *entity.SerialUnit {
	return &entity.SerialUnit{SerialNumber: "SN-1", ProductID: "p", WarehouseID: "wh-1", State: state}
}

func TestTransitionSerial_CicloDeVenta(t *testing.T) {
	u := unit(entity.SerialStateInStock)

	changed, err := inventory.TransitionSerial(u, inventory.SerialReserve, "wh-1", "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, entity.SerialStateReserved, u.State)

	_, err = inventory.TransitionSerial(u, inventory.SerialSell, "wh-1", "v-1")
	assert.ErrorIs(t, err, domain.ErrSerialUnavailable, "reservada no se vende")

	_, err = inventory.TransitionSerial(u, inventory.SerialRelease, "", "")
	require.NoError(t, err)

	_, err = inventory.TransitionSerial(u, inventory.SerialSell, "wh-1", "v-1")
	require.NoError(t, err)
	assert.Equal(t, entity.SerialStateSold, u.State)
	assert.Equal(t, "v-1", u.SaleID)

	_, err = inventory.TransitionSerial(u, inventory.SerialCancelSale, "", "v-2")
	assert.ErrorIs(t, err, domain.ErrSerialTransition, "otra venta")

	changed, err = inventory.TransitionSerial(u, inventory.SerialCancelSale, "", "v-1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, entity.SerialStateInStock, u.State)
	assert.Empty(t, u.SaleID)

	changed, err = inventory.TransitionSerial(u, inventory.SerialCancelSale, "", "v-1")
	require.NoError(t, err)
	assert.False(t, changed, "cancelar de nuevo no cambia nada")
}

func TestTransitionSerial_Rechazos(t *testing.T) {
	_, err := inventory.TransitionSerial(unit(entity.SerialStateInStock), inventory.SerialSell, "wh-2", "v")
	assert.ErrorIs(t, err, domain.ErrSerialWrongWarehouse)

	deleted := unit(entity.SerialStateInStock)
	ts := time.Now()
	deleted.DeletedAt = &ts
	_, err = inventory.TransitionSerial(deleted, inventory.SerialReserve, "wh-1", "")
	assert.ErrorIs(t, err, domain.ErrSerialUnavailable)

	_, err = inventory.TransitionSerial(unit(entity.SerialStateInStock), inventory.SerialRelease, "", "")
	assert.ErrorIs(t, err, domain.ErrSerialTransition)

	_, err = inventory.TransitionSerial(unit(entity.SerialStateReserved), inventory.SerialRelease, "wh-2", "")
	assert.ErrorIs(t, err, domain.ErrSerialWrongWarehouse)

	_, err = inventory.TransitionSerial(unit(entity.SerialStateInStock), inventory.SerialEvent("scrap"), "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var se *domain.SerialError
	_, err = inventory.TransitionSerial(unit(entity.SerialStateSold), inventory.SerialReserve, "wh-1", "")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "SN-1", se.Serial)
}

func TestNormalizeSerials(t *testing.T) {
	got, err := inventory.NormalizeSerials("p", []string{" ＡＢ１ ", "cd2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AB1", "cd2"}, got)

	_, err = inventory.NormalizeSerials("p", []string{"AB1", "ＡＢ１"})
	assert.ErrorIs(t, err, domain.ErrSerialDuplicate)

	_, err = inventory.NormalizeSerials("p", []string{"  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
