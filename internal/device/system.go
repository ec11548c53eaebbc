package device

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
)

// Reboot restarts the device.
func (s *Service) Reboot(ctx context.Context, cred routeros.Credential) error {
	if err := s.disrupt(ctx, "reboot", cred, "/system/reboot"); err != nil {
		return err
	}
	slog.Info("Device rebooting", "host", cred.Host)
	return nil
}

func (s *Service) CheckUpdates(ctx context.Context, cred routeros.Credential) (*models.UpdateStatus, error) {
	if _, err := s.write(ctx, "check updates", cred, "/system/package/update/check-for-updates"); err != nil {
		return nil, err
	}
	rows, err := s.write(ctx, "check updates", cred, "/system/package/update/print")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &models.UpdateStatus{}, nil
	}
	st := toUpdateStatus(rows[0])
	return &st, nil
}

// InstallUpdates downloads and installs the latest packages; the device
// reboots when done.
func (s *Service) InstallUpdates(ctx context.Context, cred routeros.Credential) error {
	if err := s.disrupt(ctx, "install updates", cred, "/system/package/update/install"); err != nil {
		return err
	}
	slog.Info("Device installing updates", "host", cred.Host)
	return nil
}

// disrupt runs a command after which the device drops the connection,
// usually before it answers. A drop counts as success only once the command
// was written to a live connection. A connection that was already dead is
// replaced and the command sent once more.
func (s *Service) disrupt(ctx context.Context, op string, cred routeros.Credential, command string) error {
	_, err := s.run(ctx, cred, command)
	if routeros.NotSent(err) {
		slog.Warn("Stale device connection, retrying", "op", op, "host", cred.Host, "error", err)
		_, err = s.run(ctx, cred, command)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, routeros.ErrConnectionBroken) &&
		!routeros.NotSent(err) &&
		!errors.Is(err, routeros.ErrCallTimeout):
		return nil
	}
	slog.Warn("Device write failed", "op", op, "host", cred.Host, "error", err)
	return classify(op, err)
}
