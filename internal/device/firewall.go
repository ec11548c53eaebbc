package device

import (
	"context"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/routeros"
)

const (
	addressListPath = "/ip/firewall/address-list"
	filterPath      = "/ip/firewall/filter"
)

type AddressEntryInput struct {
	List    string `json:"list"`
	Address string `json:"address"`
	Comment string `json:"comment"`
}

func (in AddressEntryInput) validate() error {
	if err := sanitizeIdentifier("list", in.List); err != nil {
		return err
	}
	if err := sanitizeAddress(in.Address); err != nil {
		return err
	}
	return sanitizeComment(in.Comment)
}

// ListAddressEntries returns entries, optionally filtered to one list.
func (s *Service) ListAddressEntries(ctx context.Context, cred routeros.Credential, list string) ([]models.AddressEntry, error) {
	var args []string
	if list != "" {
		if err := sanitizeIdentifier("list", list); err != nil {
			return nil, err
		}
		args = append(args, "?list="+list)
	}
	rows, err := s.run(ctx, cred, addressListPath+"/print", args...)
	if err != nil {
		return nil, classify("list address entries", err)
	}
	out := make([]models.AddressEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAddressEntry(r))
	}
	return out, nil
}

// AddressListNames returns the distinct list names, served from cache
// until the next address-list write.
func (s *Service) AddressListNames(ctx context.Context, cred routeros.Credential) ([]string, error) {
	key := cred.Key()
	if names, ok := s.names.get(key); ok {
		return names, nil
	}

	rows, err := s.run(ctx, cred, addressListPath+"/print", "=.proplist=list")
	if err != nil {
		return nil, classify("list address-list names", err)
	}
	seen := make(map[string]struct{}, len(rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		name := r["list"]
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	s.names.put(key, names)
	names, _ = s.names.get(key)
	return names, nil
}

func (s *Service) AddAddressEntry(ctx context.Context, cred routeros.Credential, in AddressEntryInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	args := []string{"list=" + in.List, "address=" + in.Address}
	if in.Comment != "" {
		args = append(args, "comment="+in.Comment)
	}
	rows, err := s.write(ctx, "add address entry", cred, addressListPath+"/add", args...)
	if err != nil {
		return "", err
	}
	s.names.invalidate()
	return retID(rows), nil
}

func (s *Service) ToggleAddressEntry(ctx context.Context, cred routeros.Credential, id string, disabled bool) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	_, err := s.write(ctx, "toggle address entry", cred, addressListPath+"/set", "numbers="+id, "disabled="+yesNo(disabled))
	if err != nil {
		return err
	}
	s.names.invalidate()
	return nil
}

// MoveAddressEntry places id before destination in the list order.
func (s *Service) MoveAddressEntry(ctx context.Context, cred routeros.Credential, id, destination string) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	if err := sanitizeID(destination); err != nil {
		return err
	}
	_, err := s.write(ctx, "move address entry", cred, addressListPath+"/move", "numbers="+id, "destination="+destination)
	if err != nil {
		return err
	}
	s.names.invalidate()
	return nil
}

func (s *Service) RemoveAddressEntry(ctx context.Context, cred routeros.Credential, id string) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	_, err := s.write(ctx, "remove address entry", cred, addressListPath+"/remove", "numbers="+id)
	if err != nil {
		return err
	}
	s.names.invalidate()
	return nil
}

// ─── Filter rules ───────────────────────────────────────────────────────

func (s *Service) ListFilterRules(ctx context.Context, cred routeros.Credential) ([]models.Rule, error) {
	rows, err := s.run(ctx, cred, filterPath+"/print")
	if err != nil {
		return nil, classify("list filter rules", err)
	}
	out := make([]models.Rule, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRule(r))
	}
	return out, nil
}

// ToggleFilterRule enables or disables one filter rule by id.
func (s *Service) ToggleFilterRule(ctx context.Context, cred routeros.Credential, id string, enabled bool) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	command := filterPath + "/disable"
	if enabled {
		command = filterPath + "/enable"
	}
	_, err := s.write(ctx, "toggle filter rule", cred, command, "=.id="+id)
	return err
}

// retID extracts the id of a created item from the !done reply.
func retID(rows []Row) string {
	for _, r := range rows {
		if id, ok := r["ret"]; ok {
			return id
		}
	}
	return ""
}
