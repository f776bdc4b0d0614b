package actiontoken

import (
	"context"
	"fmt"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
)

type AppointmentGetter interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
}

type Verified struct {
	Appointment model.Appointment
	Action      Action
	Claims      Claims
}

// Verifier resolves a token to its appointment without changing anything.
type Verifier struct {
	signer *Signer
	appts  AppointmentGetter
}

func NewVerifier(signer *Signer, appts AppointmentGetter) *Verifier {
	return &Verifier{signer: signer, appts: appts}
}

// Verify returns model.ErrAlreadyProcessed together with the populated result when the
// appointment already sits in the action's target state.
func (v *Verifier) Verify(ctx context.Context, token string) (Verified, error) {
	c, err := v.signer.Parse(token)
	if err != nil {
		return Verified{}, err
	}
	appt, err := v.appts.Get(ctx, c.AppointmentID)
	if err != nil {
		return Verified{}, err
	}
	out := Verified{Appointment: appt, Action: c.Action, Claims: c}
	if appt.Status == c.Action.Target() {
		return out, fmt.Errorf("%w: appointment already %s", model.ErrAlreadyProcessed, appt.Status)
	}
	return out, nil
}
