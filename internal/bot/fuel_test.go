package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

func startFuel(t *testing.T, env *testEnv) {
	t.Helper()
	if err := env.fuel.Start(context.Background(), event("/carga")); err != nil {
		t.Fatalf("fuel start: %v", err)
	}
}

func lastCharge(t *testing.T, env *testEnv) models.FuelCharge {
	t.Helper()
	var charge models.FuelCharge
	if err := env.db.Order("id DESC").First(&charge).Error; err != nil {
		t.Fatalf("load charge: %v", err)
	}
	return charge
}

func TestFuel_NoActiveUnits(t *testing.T) {
	env := setupBot(t)
	startFuel(t, env)

	if env.sessions.State("chat-1") != StateIdle {
		t.Error("form opened with no units")
	}
	last, _ := env.adapter.LastSent()
	if !strings.Contains(last.Text, "No hay unidades activas") {
		t.Errorf("notice = %q", last.Text)
	}
}

func TestFuel_FullForm(t *testing.T) {
	env := setupBot(t)
	unit := env.seedUnit(t, 1, "U-07", "Carmen")

	startFuel(t, env)
	env.dispatcher.Dispatch(context.Background(), callback(fmt.Sprintf("%s_%d", cbFuelUnit, unit.ID)))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelType+"_"+models.FuelTypeDiesel))
	env.dispatcher.Dispatch(context.Background(), event("120.5"))
	env.dispatcher.Dispatch(context.Background(), event("2890.75"))
	env.dispatcher.Dispatch(context.Background(), event("45230"))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelConfirm))

	if env.sessions.State("chat-1") != StateIdle {
		t.Fatal("session not reset after confirm")
	}
	charge := lastCharge(t, env)
	if charge.UnitID != unit.ID || charge.FuelType != models.FuelTypeDiesel {
		t.Errorf("charge = %+v", charge)
	}
	if charge.Liters != 120.5 || charge.Amount != 2890.75 {
		t.Errorf("liters=%v amount=%v", charge.Liters, charge.Amount)
	}
	if charge.Kilometers == nil || *charge.Kilometers != 45230 {
		t.Errorf("kilometers = %v, want 45230", charge.Kilometers)
	}
	if charge.PaymentStatus != models.PaymentPending {
		t.Errorf("payment status = %q, want pending default", charge.PaymentStatus)
	}
}

func TestFuel_SkipKilometers(t *testing.T) {
	env := setupBot(t)
	unit := env.seedUnit(t, 1, "U-07", "Carmen")

	startFuel(t, env)
	env.dispatcher.Dispatch(context.Background(), callback(fmt.Sprintf("%s_%d", cbFuelUnit, unit.ID)))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelType+"_"+models.FuelTypeGas))
	env.dispatcher.Dispatch(context.Background(), event("30"))
	env.dispatcher.Dispatch(context.Background(), event("600"))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelSkipKm))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelConfirm))

	charge := lastCharge(t, env)
	if charge.Kilometers != nil {
		t.Errorf("kilometers = %v, want nil when skipped", *charge.Kilometers)
	}
}

func TestFuel_KilometersBelowLastReprompts(t *testing.T) {
	env := setupBot(t)
	unit := env.seedUnit(t, 1, "U-07", "Carmen")
	if _, err := env.store.CreateLogEntry(context.Background(), 1, unit.ID, 50000, models.LogTypeShiftStart, batchDate, "admin"); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	startFuel(t, env)
	env.dispatcher.Dispatch(context.Background(), callback(fmt.Sprintf("%s_%d", cbFuelUnit, unit.ID)))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelType+"_"+models.FuelTypeGasoline))
	env.dispatcher.Dispatch(context.Background(), event("40"))
	env.dispatcher.Dispatch(context.Background(), event("900"))
	env.dispatcher.Dispatch(context.Background(), event("49000"))

	if env.sessions.State("chat-1") != StateFuelAwaitingKilometers {
		t.Fatal("rejected kilometers must not advance the form")
	}
	last, _ := env.adapter.LastSent()
	if !strings.HasPrefix(last.Text, "❌") {
		t.Errorf("rejection = %q", last.Text)
	}

	// Corrected value proceeds to confirmation.
	env.dispatcher.Dispatch(context.Background(), event("50100"))
	if env.sessions.State("chat-1") != StateFuelAwaitingConfirm {
		t.Error("corrected value did not reach confirmation")
	}
}

func TestFuel_InvalidLitersReprompts(t *testing.T) {
	env := setupBot(t)
	unit := env.seedUnit(t, 1, "U-07", "Carmen")

	startFuel(t, env)
	env.dispatcher.Dispatch(context.Background(), callback(fmt.Sprintf("%s_%d", cbFuelUnit, unit.ID)))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelType+"_"+models.FuelTypeGas))
	env.dispatcher.Dispatch(context.Background(), event("0"))

	if env.sessions.State("chat-1") != StateFuelAwaitingLiters {
		t.Error("zero liters must re-prompt")
	}
	env.dispatcher.Dispatch(context.Background(), event("-5"))
	if env.sessions.State("chat-1") != StateFuelAwaitingLiters {
		t.Error("negative liters must re-prompt")
	}
	env.dispatcher.Dispatch(context.Background(), event("1e-3"))
	if env.sessions.State("chat-1") != StateFuelAwaitingLiters {
		t.Error("sub-centi exponent liters must re-prompt")
	}
}

func TestFuel_CancelAnywhere(t *testing.T) {
	env := setupBot(t)
	unit := env.seedUnit(t, 1, "U-07", "Carmen")

	startFuel(t, env)
	env.dispatcher.Dispatch(context.Background(), callback(fmt.Sprintf("%s_%d", cbFuelUnit, unit.ID)))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelCancel))

	if env.sessions.State("chat-1") != StateIdle {
		t.Error("cancel did not reset the session")
	}
	var n int64
	env.db.Model(&models.FuelCharge{}).Count(&n)
	if n != 0 {
		t.Errorf("charges = %d, want none after cancel", n)
	}
}

// A failed cancel notice must still end the flow and surface the send error.
func TestFuel_CancelNoticeSendError(t *testing.T) {
	env := setupBot(t)
	unit := env.seedUnit(t, 1, "U-07", "Carmen")

	startFuel(t, env)
	env.dispatcher.Dispatch(context.Background(), callback(fmt.Sprintf("%s_%d", cbFuelUnit, unit.ID)))

	env.adapter.SetSendError(errors.New("gateway down"))
	done, err := env.fuel.cancelled(context.Background(), callback(cbFuelCancel))
	if !done {
		t.Fatal("cancel press must end the flow")
	}
	if err == nil || !strings.Contains(err.Error(), "gateway down") {
		t.Errorf("err = %v, want the send failure", err)
	}
	if env.sessions.State("chat-1") != StateIdle {
		t.Error("session not reset despite the send failure")
	}
}

func TestFuel_ConfirmSummaryContents(t *testing.T) {
	env := setupBot(t)
	unit := env.seedUnit(t, 1, "U-07", "Carmen")

	startFuel(t, env)
	env.dispatcher.Dispatch(context.Background(), callback(fmt.Sprintf("%s_%d", cbFuelUnit, unit.ID)))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelType+"_"+models.FuelTypeDiesel))
	env.dispatcher.Dispatch(context.Background(), event("80"))
	env.dispatcher.Dispatch(context.Background(), event("2000"))
	env.dispatcher.Dispatch(context.Background(), callback(cbFuelSkipKm))

	last, _ := env.adapter.LastSent()
	for _, want := range []string{"Carmen - U-07", "Diésel", "Litros: 80.00", "Monto: $2000.00", "Kilometraje: omitido"} {
		if !strings.Contains(last.Text, want) {
			t.Errorf("confirmation missing %q:\n%s", want, last.Text)
		}
	}
}
