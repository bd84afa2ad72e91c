package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/window"
)

// addWindow schedules a phase window, subject to the same validation rules as
// the API.
func (cli *commandLine) addWindow(phase, track, cycle, start, end string, enforced bool) error {
	startsAt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return errors.Wrap(err, "parsing -start")
	}
	endsAt, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return errors.Wrap(err, "parsing -end")
	}

	w, err := cli.winSvc.Create(context.Background(), window.NewWindow{
		Phase:    phase,
		Track:    track,
		Cycle:    cycle,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Enforced: &enforced,
	}, "" /* createdBy: CLI */)
	if err != nil {
		return err
	}
	logger.Printf("window %s scheduled: %s %s [%s – %s]", w.ID, w.Track, w.Label(), w.StartsAt, w.EndsAt)
	return nil
}
