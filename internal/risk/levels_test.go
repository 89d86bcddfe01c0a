package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/order"
)

func TestComputeLong(t *testing.T) {
	lv, err := Compute(order.SideBuy, 100, 0.05, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 95, lv.StopLoss, 1e-9)
	assert.InDelta(t, 110, lv.TakeProfit, 1e-9)
}

func TestComputeShort(t *testing.T) {
	lv, err := Compute(order.SideSell, 100, 0.05, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 105, lv.StopLoss, 1e-9)
	assert.InDelta(t, 90, lv.TakeProfit, 1e-9)
}

func TestComputeRejectsBadInput(t *testing.T) {
	_, err := Compute(order.SideBuy, 0, 0.05, 0.10)
	assert.Error(t, err)

	_, err = Compute(order.SideBuy, 100, 0, 0.10)
	assert.Error(t, err)

	_, err = Compute(order.Side("LONG"), 100, 0.05, 0.10)
	assert.Error(t, err)
}

func TestValidateRejectsInvertedLevels(t *testing.T) {
	err := Validate(order.SideBuy, 100, Levels{StopLoss: 105, TakeProfit: 110})
	assert.Error(t, err, "long stop above entry")

	err = Validate(order.SideBuy, 100, Levels{StopLoss: 95, TakeProfit: 98})
	assert.Error(t, err, "long take profit below entry")

	err = Validate(order.SideSell, 100, Levels{StopLoss: 95, TakeProfit: 90})
	assert.Error(t, err, "short stop below entry")

	err = Validate(order.SideSell, 100, Levels{StopLoss: 105, TakeProfit: 110})
	assert.Error(t, err, "short take profit above entry")
}

func TestCheckTriggers(t *testing.T) {
	long := Levels{StopLoss: 95, TakeProfit: 110}
	assert.Equal(t, TriggerNone, Check(order.SideBuy, long, 100))
	assert.Equal(t, TriggerStopLoss, Check(order.SideBuy, long, 94.5))
	assert.Equal(t, TriggerStopLoss, Check(order.SideBuy, long, 95))
	assert.Equal(t, TriggerTakeProfit, Check(order.SideBuy, long, 111))

	short := Levels{StopLoss: 105, TakeProfit: 90}
	assert.Equal(t, TriggerNone, Check(order.SideSell, short, 100))
	assert.Equal(t, TriggerStopLoss, Check(order.SideSell, short, 106))
	assert.Equal(t, TriggerTakeProfit, Check(order.SideSell, short, 89))
}

func TestCheckIgnoresUnsetLevels(t *testing.T) {
	assert.Equal(t, TriggerNone, Check(order.SideBuy, Levels{}, 1))
}
