package device

import (
	"context"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
)

const queuePath = "/queue/simple"

type QueueInput struct {
	Name     string `json:"name"`
	Target   string `json:"target"`
	MaxLimit string `json:"max_limit"`
	Comment  string `json:"comment"`
}

// args validates the set fields and renders them as key=value words.
// With partial set, empty fields are skipped instead of rejected.
func (in QueueInput) args(partial bool) ([]string, error) {
	var args []string
	if in.Name != "" || !partial {
		if err := sanitizeIdentifier("name", in.Name); err != nil {
			return nil, err
		}
		args = append(args, "name="+in.Name)
	}
	if in.Target != "" || !partial {
		if err := sanitizeTarget(in.Target); err != nil {
			return nil, err
		}
		args = append(args, "target="+in.Target)
	}
	if in.MaxLimit != "" {
		if err := sanitizeMaxLimit(in.MaxLimit); err != nil {
			return nil, err
		}
		args = append(args, "max-limit="+in.MaxLimit)
	}
	if in.Comment != "" {
		if err := sanitizeComment(in.Comment); err != nil {
			return nil, err
		}
		args = append(args, "comment="+in.Comment)
	}
	return args, nil
}

func (s *Service) ListQueues(ctx context.Context, cred routeros.Credential) ([]models.Queue, error) {
	rows, err := s.run(ctx, cred, queuePath+"/print")
	if err != nil {
		return nil, classify("list queues", err)
	}
	out := make([]models.Queue, 0, len(rows))
	for _, r := range rows {
		out = append(out, toQueue(r))
	}
	return out, nil
}

func (s *Service) AddQueue(ctx context.Context, cred routeros.Credential, in QueueInput) (string, error) {
	args, err := in.args(false)
	if err != nil {
		return "", err
	}
	rows, err := s.write(ctx, "add queue", cred, queuePath+"/add", args...)
	if err != nil {
		return "", err
	}
	return retID(rows), nil
}

func (s *Service) UpdateQueue(ctx context.Context, cred routeros.Credential, id string, in QueueInput) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	args, err := in.args(true)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return &InputError{Field: "queue", Value: "no fields to update"}
	}
	_, err = s.write(ctx, "update queue", cred, queuePath+"/set", append([]string{"numbers=" + id}, args...)...)
	return err
}

func (s *Service) ToggleQueue(ctx context.Context, cred routeros.Credential, id string, disabled bool) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	_, err := s.write(ctx, "toggle queue", cred, queuePath+"/set", "numbers="+id, "disabled="+yesNo(disabled))
	return err
}

func (s *Service) DeleteQueue(ctx context.Context, cred routeros.Credential, id string) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	_, err := s.write(ctx, "delete queue", cred, queuePath+"/remove", "numbers="+id)
	return err
}
