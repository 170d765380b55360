package store

import (
	"context"
	"time"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/sample"
	"codeberg.org/mutker/battmon/internal/session"
)

// noopStore satisfies Store without persisting anything. Used when
// persistence is disabled or the database failed to open.
type noopStore struct{}

func NewNoop() Store {
	return noopStore{}
}

func (noopStore) RecordSample(context.Context, sample.PowerSample) error { return nil }

func (noopStore) RecordAlert(context.Context, alert.Alert) error { return nil }

func (noopStore) StartSession(context.Context, session.Record) error { return nil }

func (noopStore) UpdateSession(context.Context, session.Update) error { return nil }

func (noopStore) EndSession(context.Context, string, time.Time) error { return nil }

func (noopStore) GetSession(_ context.Context, sessionID string) (SessionRow, error) {
	return SessionRow{}, errors.New().WithData(ErrSessionNotFound, sessionID)
}

func (noopStore) GetSetting(_ context.Context, key string) (string, error) {
	return "", errors.New().WithData(ErrSettingNotFound, key)
}

func (noopStore) SetSetting(context.Context, string, string) error { return nil }

func (noopStore) Close() error { return nil }
